package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/clubops/querycsv/internal/api_server"
	"github.com/clubops/querycsv/internal/config"
	"github.com/clubops/querycsv/internal/registry"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the querycsv api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		st := store.NewStore(db)
		defer st.Close()

		// Postgres deployments carry their schema via the migrate
		// command; everything else migrates in place.
		if cfg.Database.Type != "pgsql" || cfg.Service.MigrationFolder == "" {
			if err := st.InitialMigration(); err != nil {
				zap.S().Fatalf("running initial migration: %v", err)
			}
		}

		reg, err := registry.Load(cfg.Service.CollectionsFile, st.Document())
		if err != nil {
			zap.S().Fatalf("loading collections: %v", err)
		}
		zap.S().Infof("registered collections: %v", reg.Names())

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			server := apiserver.New(cfg, st, reg, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalf("Error running server: %s", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalf("Error running metrics server: %s", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
