package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"haiwei-pos/backend/internal/domain"
)

// Store persists the register's working state. Load on a fresh store returns
// an empty state, not an error.
type Store interface {
	Load(ctx context.Context) (domain.SessionState, error)
	Save(ctx context.Context, state domain.SessionState) error
}

type MemoryStore struct {
	mu      sync.Mutex
	payload []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(m.payload)
}

func (m *MemoryStore) Save(_ context.Context, state domain.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.payload = payload
	m.mu.Unlock()
	return nil
}

type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "haiwei:pos:session"
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (domain.SessionState, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return empty(), nil
	}
	if err != nil {
		return domain.SessionState{}, err
	}
	return decode(val)
}

func (r *RedisStore) Save(ctx context.Context, state domain.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, payload, 0).Err()
}

func decode(payload []byte) (domain.SessionState, error) {
	if len(payload) == 0 {
		return empty(), nil
	}
	var state domain.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.SessionState{}, err
	}
	normalize(&state)
	return state, nil
}

func empty() domain.SessionState {
	var state domain.SessionState
	normalize(&state)
	return state
}

func normalize(state *domain.SessionState) {
	if state.Cart == nil {
		state.Cart = []domain.CartLine{}
	}
	if state.HeldOrders == nil {
		state.HeldOrders = []domain.HeldOrder{}
	}
	if state.SoldOut == nil {
		state.SoldOut = []string{}
	}
	if state.Orders == nil {
		state.Orders = []domain.Order{}
	}
}
