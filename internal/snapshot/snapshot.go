// Package snapshot persists the whole order set as one gzipped JSON blob,
// locally or in S3. The blob is a cache of the primary order repository and
// is always read and written whole.
package snapshot

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"digistore/internal/model"
)

// Store loads and saves the order snapshot.
type Store interface {
	// Load returns the persisted orders. A snapshot that does not exist yet
	// yields an empty slice and no error.
	Load(ctx context.Context) ([]model.Order, error)

	// Save replaces the persisted snapshot with orders.
	Save(ctx context.Context, orders []model.Order) error
}

// encode writes orders as a gzipped JSON array.
func encode(w io.Writer, orders []model.Order) error {
	if orders == nil {
		orders = []model.Order{}
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(orders); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return nil
}

// decode reads a gzipped JSON array of orders.
func decode(r io.Reader) ([]model.Order, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var orders []model.Order
	if err := json.NewDecoder(gz).Decode(&orders); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}
