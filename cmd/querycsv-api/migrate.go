package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/config"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/pkg/log"
	"github.com/clubops/querycsv/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		st := store.NewStore(db)
		defer st.Close()

		if cfg.Database.Type != "pgsql" || cfg.Service.MigrationFolder == "" {
			if err := st.InitialMigration(); err != nil {
				zap.S().Fatalf("running initial migration: %v", err)
			}
			zap.S().Info("Db migrated")
			return nil
		}

		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d dbname=%s",
			cfg.Database.Hostname,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Port,
			cfg.Database.Name,
		)
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			zap.S().Fatalf("creating pgx pool: %v", err)
		}
		defer pool.Close()

		if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder, pool); err != nil {
			zap.S().Fatalf("running migrations: %v", err)
		}

		zap.S().Info("Db migrated")
		return nil
	},
}
