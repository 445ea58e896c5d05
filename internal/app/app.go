// Package app assembles the order ledger and its storage backends from
// configuration. It is shared by the API server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"path"

	"digistore/internal/config"
	"digistore/internal/database"
	"digistore/internal/ledger"
	"digistore/internal/repository"
	"digistore/internal/snapshot"

	"github.com/rs/zerolog"
)

// SnapshotObject is the object name of the order snapshot under the S3 prefix.
const SnapshotObject = "orders.json.gz"

// OpenLedger opens the configured order repository and snapshot cache and
// returns the ledger over them. The returned close function releases any
// database handles.
func OpenLedger(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ledger.Store, func(), error) {
	repo, closeRepo, err := OpenRepository(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	snap, err := OpenSnapshot(ctx, cfg, logger)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	return ledger.New(repo, snap, logger), closeRepo, nil
}

// OpenRepository selects the primary order repository, applying migrations
// for SQL backends first.
func OpenRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.OrderRepository, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		dsn := cfg.Database.ConnectionString()
		if err := database.Migrate(database.DialectPostgres, dsn, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return repository.NewOrderRepository(pool, logger), pool.Close, nil

	case config.StoreSQLite:
		if err := database.Migrate(database.DialectSQLite, cfg.Store.SQLitePath, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		db, err := database.OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return repository.NewSQLiteOrderRepository(db, logger), func() { db.Close() }, nil

	default:
		logger.Warn().Msg("using in-memory order repository, orders are lost on restart unless the snapshot is enabled")
		return repository.NewMemoryOrderRepository(logger), func() {}, nil
	}
}

// OpenSnapshot returns the snapshot cache, or nil when it is disabled. With
// S3 enabled the snapshot lives in the bucket and the local file is the
// fallback.
func OpenSnapshot(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (snapshot.Store, error) {
	if !cfg.Store.SnapshotEnabled {
		logger.Info().Msg("order snapshot disabled")
		return nil, nil
	}

	local := snapshot.NewFileStore(cfg.Store.SnapshotPath, logger)
	if !cfg.S3.Enabled {
		return local, nil
	}

	remote, err := snapshot.NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region, path.Join(cfg.S3.Prefix, SnapshotObject), logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 snapshot store, falling back to local file system only")
		return local, nil
	}
	return snapshot.NewFallbackStore(remote, local, logger), nil
}
