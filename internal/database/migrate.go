package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrations embed.FS

// Dialect names a schema flavour shipped in migrations/.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// MigrationURL converts a connection string into the URL form the migrate
// drivers expect.
func MigrationURL(dialect Dialect, dsn string) string {
	switch dialect {
	case DialectPostgres:
		for _, prefix := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(dsn, prefix) {
				return "pgx5://" + strings.TrimPrefix(dsn, prefix)
			}
		}
		return dsn
	case DialectSQLite:
		if strings.HasPrefix(dsn, "sqlite://") {
			return dsn
		}
		return "sqlite://" + dsn
	}
	return dsn
}

// Migrate applies every pending up migration for dialect to the database at dsn.
func Migrate(dialect Dialect, dsn string, logger zerolog.Logger) error {
	src, err := iofs.New(migrations, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("failed to load %s migrations: %w", dialect, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, MigrationURL(dialect, dsn))
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source_error", srcErr).AnErr("database_error", dbErr).Msg("failed to close migrator")
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug().Str("dialect", string(dialect)).Msg("schema up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info().
		Str("dialect", string(dialect)).
		Uint("version", version).
		Msg("migrations applied")

	return nil
}
