package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownState is returned when an OAuth state is missing, expired or already used
var ErrUnknownState = errors.New("oauth state not found or expired")

const stateKeyPrefix = "signflow:oauth_state:"

// PendingAuthorization is what is remembered between /auth and /callback
type PendingAuthorization struct {
	RequestedBy string    `json:"requested_by,omitempty"`
	RedirectTo  string    `json:"redirect_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StateStore keeps OAuth state values for the consent round trip
type StateStore interface {
	// Save remembers state until ttl elapses
	Save(ctx context.Context, state string, pending PendingAuthorization, ttl time.Duration) error
	// Consume returns and forgets state; a second call fails with ErrUnknownState
	Consume(ctx context.Context, state string) (*PendingAuthorization, error)
}

type memoryStateStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryStateStore creates a process-local state store
func NewMemoryStateStore(defaultTTL time.Duration) StateStore {
	return &memoryStateStore{cache: gocache.New(defaultTTL, time.Minute)}
}

func (s *memoryStateStore) Save(_ context.Context, state string, pending PendingAuthorization, ttl time.Duration) error {
	s.cache.Set(state, pending, ttl)
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, state string) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(state)
	if !ok {
		return nil, ErrUnknownState
	}
	s.cache.Delete(state)
	pending := v.(PendingAuthorization)
	return &pending, nil
}

type redisStateStore struct {
	client redis.UniversalClient
}

// NewRedisStateStore creates a state store shared by every instance behind the same Redis
func NewRedisStateStore(client redis.UniversalClient) StateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) Save(ctx context.Context, state string, pending PendingAuthorization, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *redisStateStore) Consume(ctx context.Context, state string) (*PendingAuthorization, error) {
	payload, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnknownState
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	var pending PendingAuthorization
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &pending, nil
}
