package migrations

import (
	"errors"

	"github.com/cristianortiz/marketplace/internal/shared/config"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const sourceURL = "file://internal/shared/db/migrations/sql"

// RunMigrations applies the events, deadlines and sagas schema.
func RunMigrations(cfg config.DBConfig) error {
	log.Info("RunMigrations",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name))
	m, err := migrate.New(sourceURL, cfg.DSN())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
