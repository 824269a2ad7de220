package app

import (
	"fmt"

	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/openballot/voting-core/api"
	"github.com/openballot/voting-core/ballotbox"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/db/model"
	"github.com/openballot/voting-core/eligibility"
	"github.com/openballot/voting-core/keys"
	"github.com/openballot/voting-core/lifecycle"
	"github.com/openballot/voting-core/metrics"
	"github.com/openballot/voting-core/scheduler"
	"github.com/openballot/voting-core/tally"
	"github.com/openballot/voting-core/tokenissuer"
	"github.com/openballot/voting-core/wiper"
)

type App struct {
	server            *api.Server
	eligibilityClient *eligibility.Client
	scheduler         *scheduler.Scheduler
	auditWiper        *wiper.AuditWiper
	metricService     *metrics.MetricService
}

func NewApp(cfg *config.Config) *App {
	username := cfg.DBConfig.Username
	password := viper.GetString(config.FlagConfigDbPass)
	if password == "" {
		password = cfg.DBConfig.Password
	}

	dbPath := fmt.Sprintf("%s:%s@%s", username, password, cfg.DBConfig.DBPath)

	db, err := gorm.Open(mysql.Open(dbPath), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("open db error, err=%+v", err.Error()))
	}

	dbConfig, err := db.DB()
	if err != nil {
		panic(err)
	}
	dbConfig.SetMaxIdleConns(cfg.DBConfig.MaxIdleConns)
	dbConfig.SetMaxOpenConns(cfg.DBConfig.MaxOpenConns)

	model.InitElectionTable(db)
	model.InitAnswerTable(db)
	model.InitVotingTokenTable(db)
	model.InitBallotTable(db)
	model.InitBallotSelectionTable(db)
	model.InitAuditLogTable(db)

	electionDao := dao.NewElectionDao(db)
	tokenDao := dao.NewTokenDao(db)
	ballotDao := dao.NewBallotDao(db)
	auditDao := dao.NewAuditDao(db)
	daoManager := dao.NewDaoManager(electionDao, tokenDao, ballotDao, auditDao)

	issuingKey := viper.GetString(config.FlagConfigIssuingKey)
	if issuingKey == "" {
		issuingKey = cfg.AuthConfig.IssuingKey
	}
	s2sSecret := viper.GetString(config.FlagConfigS2SSecret)
	if s2sSecret == "" {
		s2sSecret = cfg.AuthConfig.S2SSecret
	}
	keyManager, err := keys.NewKeyManager(issuingKey, s2sSecret)
	if err != nil {
		panic(err)
	}

	metricService := metrics.NewMetricService(cfg)
	eligibilityClient := eligibility.NewClient(&cfg.EligibilityConfig)

	lifecycleDataHandler := lifecycle.NewDataHandler(daoManager)
	manager := lifecycle.NewManager(cfg, lifecycleDataHandler)

	issuerDataHandler := tokenissuer.NewDataHandler(daoManager)
	issuer := tokenissuer.NewIssuer(cfg, keyManager, issuerDataHandler, metricService)

	casterDataHandler := ballotbox.NewDataHandler(daoManager)
	caster := ballotbox.NewCaster(cfg, casterDataHandler, metricService)

	tallyDataHandler := tally.NewDataHandler(daoManager)
	tabulator := tally.NewTabulator(tallyDataHandler, eligibilityClient, metricService)

	electionScheduler := scheduler.NewScheduler(daoManager, manager, metricService)
	auditWiper := wiper.NewAuditWiper(cfg, daoManager, metricService)

	server := api.NewServer(cfg, keyManager, eligibilityClient, issuer, caster, manager, tabulator)

	return &App{
		server:            server,
		eligibilityClient: eligibilityClient,
		scheduler:         electionScheduler,
		auditWiper:        auditWiper,
		metricService:     metricService,
	}
}

func (a *App) Start() {
	go a.eligibilityClient.CacheMemberCountLoop()
	go a.scheduler.ApplyScheduledTransitionsLoop()
	go a.auditWiper.AuditWipeLoop()
	go a.metricService.Start()
	a.server.Start()
}
