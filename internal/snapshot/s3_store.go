package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"digistore/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by the snapshot store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Store implements Store on an S3 object.
type s3Store struct {
	client S3API
	bucket string
	key    string
	logger zerolog.Logger
}

// NewS3Store creates an S3-backed snapshot store using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket, region, key string, logger zerolog.Logger) (Store, error) {
	// Load AWS configuration
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	store := NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket, key, logger)

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("key", key).
		Msg("S3 snapshot store initialised")

	return store, nil
}

// NewS3StoreWithClient creates an S3-backed snapshot store on an existing client.
func NewS3StoreWithClient(client S3API, bucket, key string, logger zerolog.Logger) Store {
	return &s3Store{
		client: client,
		bucket: bucket,
		key:    key,
		logger: logger.With().Str("component", "snapshot-s3").Logger(),
	}
}

// Load reads the snapshot object. A missing object is an empty snapshot.
func (s *s3Store) Load(ctx context.Context) ([]model.Order, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			s.logger.Debug().Str("key", s.key).Msg("no snapshot object yet")
			return []model.Order{}, nil
		}
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", s.key).
			Msg("failed to get snapshot from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", s.bucket, s.key, err)
	}
	defer result.Body.Close()

	orders, err := decode(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 snapshot %s: %w", s.key, err)
	}

	s.logger.Debug().
		Str("key", s.key).
		Int("orders_loaded", len(orders)).
		Msg("snapshot loaded from S3")

	return orders, nil
}

// Save uploads the snapshot object in one PutObject call.
func (s *s3Store) Save(ctx context.Context, orders []model.Order) error {
	var buf bytes.Buffer
	if err := encode(&buf, orders); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", s.key).
			Msg("failed to put snapshot to S3")
		return fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, s.key, err)
	}

	s.logger.Debug().
		Str("key", s.key).
		Int("orders_saved", len(orders)).
		Msg("snapshot saved to S3")

	return nil
}

// fallbackStore prefers S3 and falls back to the local file. Every save is
// mirrored locally so the fallback copy is as fresh as the last write.
type fallbackStore struct {
	remote Store
	local  Store
	logger zerolog.Logger

	mu       sync.Mutex
	degraded bool
}

// NewFallbackStore creates a store that uses remote first and local when
// remote fails. A nil remote means local only.
func NewFallbackStore(remote, local Store, logger zerolog.Logger) Store {
	return &fallbackStore{
		remote: remote,
		local:  local,
		logger: logger.With().Str("component", "snapshot-fallback").Logger(),
	}
}

func (s *fallbackStore) Load(ctx context.Context) ([]model.Order, error) {
	if s.remote != nil {
		orders, err := s.remote.Load(ctx)
		if err == nil {
			s.setDegraded(false)
			return orders, nil
		}
		s.setDegraded(true)
		s.logger.Warn().Err(err).Msg("failed to load snapshot from S3, falling back to local file system")
	}
	return s.local.Load(ctx)
}

// Save writes the local mirror, then S3. After a load served from the local
// file, orders already in S3 but missing from orders are kept, and S3 is not
// written at all until it can be read again.
func (s *fallbackStore) Save(ctx context.Context, orders []model.Order) error {
	writeRemote := s.remote != nil
	if writeRemote && s.isDegraded() {
		current, err := s.remote.Load(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("S3 snapshot still unreadable, saving locally only")
			writeRemote = false
		} else {
			orders = union(orders, current)
			s.setDegraded(false)
		}
	}

	localErr := s.local.Save(ctx, orders)
	if localErr != nil {
		s.logger.Warn().Err(localErr).Msg("failed to mirror snapshot to local file system")
	}
	if !writeRemote {
		return localErr
	}

	if err := s.remote.Save(ctx, orders); err != nil {
		s.logger.Warn().Err(err).Msg("failed to save snapshot to S3, local copy kept")
		if localErr != nil {
			return err
		}
		s.setDegraded(true)
	}
	return nil
}

func (s *fallbackStore) setDegraded(v bool) {
	s.mu.Lock()
	s.degraded = v
	s.mu.Unlock()
}

func (s *fallbackStore) isDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// union returns orders followed by every entry of extra whose ID orders
// does not contain.
func union(orders, extra []model.Order) []model.Order {
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		seen[o.ID] = struct{}{}
	}
	merged := append([]model.Order(nil), orders...)
	for _, o := range extra {
		if _, ok := seen[o.ID]; !ok {
			merged = append(merged, o)
		}
	}
	return merged
}
