package main

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/config"
	"github.com/festivo/gamehub/ledger"
	"github.com/festivo/gamehub/logger"
	"github.com/festivo/gamehub/media"
	"github.com/festivo/gamehub/plan"
	"github.com/festivo/gamehub/server"
)

func newCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "gamehub",
		Short:         "Real-time game coordination server for festivo events.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml")
	cmd.SetVersionTemplate("gamehub v{{.Version}}\n")

	return cmd
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	pg := cfg.Database.Postgres
	var ledgerSource ledger.Source
	var plans admission.PlanSource

	switch cfg.Database.Driver {
	case "sql":
		src, err := ledger.NewSQLSource(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		ledgerSource = src
		plans = plan.NewSQLSource(src.DB())
	default:
		src, err := ledger.NewGormSource(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		ledgerSource = src
		plans = plan.NewGormSource(src.DB())
	}
	defer ledgerSource.Close()
	logger.Log.Info("Database connection successful.")
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		plans = plan.NewCachedSource(plans, client, 5*time.Minute)
		logger.Log.Infof("Plan cache enabled via redis at %s", cfg.Redis.Address)
	}

	gameServer := server.NewGameServer(cfg, ledgerSource, plans, media.NewHTTPResolver())

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	return gameServer.Start()
}
