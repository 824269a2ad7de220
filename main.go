package main

import (
	"flag"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openballot/voting-core/app"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/logging"
)

func initFlags() {
	flag.String(config.FlagConfigPath, "", "config file path")
	flag.String(config.FlagConfigDbPass, "", "database password")
	flag.String(config.FlagConfigIssuingKey, "", "token issuing key")
	flag.String(config.FlagConfigS2SSecret, "", "service-to-service pre-shared secret")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		panic(err)
	}
}

func printUsage() {
	fmt.Print("usage: ./voting-core --config-path configFile\n")
}

func main() {
	initFlags()
	configFilePath := viper.GetString(config.FlagConfigPath)
	if configFilePath == "" {
		printUsage()
		return
	}
	cfg := config.ParseConfigFromFile(configFilePath)
	if cfg == nil {
		fmt.Println("failed to get configuration")
		return
	}

	logging.InitLogger(&cfg.LogConfig)

	app.NewApp(cfg).Start()
}
