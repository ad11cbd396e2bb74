package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/infinitehq/aimlgw/internal/config"
	"github.com/infinitehq/aimlgw/internal/observability"
)

// Store provides read access to session records.
type Store interface {
	// Get returns the session record for the given ID, or
	// ErrSessionNotFound when no record exists.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Ping verifies connectivity to the underlying store.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// redisStore implements Store on top of a Redis client.
type redisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    observability.Logger
}

// StoreOption is a functional option for the store.
type StoreOption func(*redisStore)

// WithStoreLogger sets the observability logger.
func WithStoreLogger(logger observability.Logger) StoreOption {
	return func(s *redisStore) {
		s.logger = logger
	}
}

// WithStoreClient sets the Redis client, overriding the one built from
// configuration. Used by tests to point the store at a fake server.
func WithStoreClient(client *redis.Client) StoreOption {
	return func(s *redisStore) {
		s.client = client
	}
}

// NewStore creates a Redis-backed session store.
func NewStore(cfg *config.SessionConfig, opts ...StoreOption) (Store, error) {
	if cfg == nil {
		return nil, errors.New("session configuration is required")
	}

	s := &redisStore{
		keyPrefix: cfg.GetEffectiveKeyPrefix(),
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		if cfg.Addr == "" {
			return nil, errors.New("session store address is required")
		}
		s.client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	return s, nil
}

// Get looks up a session record by ID.
func (s *redisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		s.logger.Error("session lookup failed",
			observability.String("sessionId", sessionID),
			observability.Error(err),
		)
		return nil, &StoreError{SessionID: sessionID, Err: err}
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, &StoreError{SessionID: sessionID, Err: err}
	}
	if sess.ID == "" {
		sess.ID = sessionID
	}

	return &sess, nil
}

// Ping verifies connectivity to Redis.
func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *redisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*redisStore)(nil)
