package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// fileStore implements Store on the local file system.
type fileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a snapshot store backed by the gzipped file at path.
func NewFileStore(path string, logger zerolog.Logger) Store {
	return &fileStore{
		path:   path,
		logger: logger.With().Str("component", "snapshot-file").Logger(),
	}
}

// Load reads the snapshot file.
func (s *fileStore) Load(ctx context.Context) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("file", s.path).Msg("no snapshot file yet")
			return []model.Order{}, nil
		}
		s.logger.Error().Err(err).Str("file", s.path).Msg("failed to open snapshot file")
		return nil, fmt.Errorf("failed to open snapshot file %s: %w", s.path, err)
	}
	defer file.Close()

	orders, err := decode(file)
	if err != nil {
		s.logger.Error().Err(err).Str("file", s.path).Msg("failed to read snapshot file")
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", s.path, err)
	}

	s.logger.Debug().
		Str("file", s.path).
		Int("orders_loaded", len(orders)).
		Msg("snapshot file loaded")

	return orders, nil
}

// Save writes to a temporary file and renames it over the snapshot, so
// readers never observe a partial blob.
func (s *fileStore) Save(ctx context.Context, orders []model.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, orders); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		s.logger.Error().Err(err).Str("file", s.path).Msg("failed to replace snapshot file")
		return fmt.Errorf("failed to replace snapshot file %s: %w", s.path, err)
	}

	s.logger.Debug().
		Str("file", s.path).
		Int("orders_saved", len(orders)).
		Msg("snapshot file saved")

	return nil
}
