package config

const (
	FlagConfigPath       = "config-path"
	FlagConfigDbPass     = "db-pass"
	FlagConfigIssuingKey = "issuing-key"
	FlagConfigS2SSecret  = "s2s-secret"

	DBDialectMysql = "mysql"
)
