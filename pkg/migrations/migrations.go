// Package migrations applies the postgres schema: goose SQL migrations for
// the service tables plus river's queue tables.
package migrations

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrateStore runs all pending SQL migrations found in migrationFolder and
// brings the river schema up to date.
func MigrateStore(db *gorm.DB, migrationFolder string, pool *pgxpool.Pool) error {
	fi, err := os.Stat(migrationFolder)
	if err != nil {
		return fmt.Errorf("opening migration folder: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("migration folder %s is not a directory", migrationFolder)
	}

	goose.SetLogger(&gooseLogger{log: zap.S().Named("migrations")})
	goose.SetBaseFS(os.DirFS(migrationFolder))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("selecting goose dialect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unwrapping sql connection: %w", err)
	}
	if err := goose.Up(sqlDB, "."); err != nil {
		return fmt.Errorf("applying sql migrations: %w", err)
	}

	if err := migrateRiver(pool); err != nil {
		return fmt.Errorf("applying river migrations: %w", err)
	}
	return nil
}

func migrateRiver(pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	_, err = migrator.Migrate(context.Background(), rivermigrate.DirectionUp, nil)
	return err
}

// gooseLogger bridges goose output to the zap global.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l *gooseLogger) Printf(format string, v ...any) { l.log.Infof(format, v...) }
func (l *gooseLogger) Fatalf(format string, v ...any) { l.log.Fatalf(format, v...) }
