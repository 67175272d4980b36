package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"agendo/models"
)

// StateStore persists per-sender conversation state. Get returns nil
// when no state exists for the key.
type StateStore interface {
	Get(ctx context.Context, instanceID, sender string) (*models.ConversationState, error)
	Save(ctx context.Context, state models.ConversationState) error
	Delete(ctx context.Context, instanceID, sender string) error
}

func stateKey(instanceID, sender string) string {
	return "conv:" + instanceID + ":" + sender
}

// RedisStateStore keeps conversation state in Redis with the
// inactivity window as TTL.
type RedisStateStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{Client: client, TTL: ttl}
}

func (s *RedisStateStore) Get(ctx context.Context, instanceID, sender string) (*models.ConversationState, error) {
	raw, err := s.Client.Get(ctx, stateKey(instanceID, sender)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	var state models.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return &state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state models.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	key := stateKey(state.InstanceID, state.Sender)
	if err := s.Client.Set(ctx, key, data, s.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store conversation state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Delete(ctx context.Context, instanceID, sender string) error {
	return s.Client.Del(ctx, stateKey(instanceID, sender)).Err()
}

// MemoryStateStore is the in-process store used in tests and as a
// fallback when Redis is not configured.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]models.ConversationState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.ConversationState)}
}

func (s *MemoryStateStore) Get(_ context.Context, instanceID, sender string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[stateKey(instanceID, sender)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *MemoryStateStore) Save(_ context.Context, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.InstanceID, state.Sender)] = state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, instanceID, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(instanceID, sender))
	return nil
}

// Tracker maintains per-sender dialogue state on top of a StateStore.
type Tracker struct {
	Store StateStore
	TTL   time.Duration
}

func NewTracker(store StateStore, ttl time.Duration) *Tracker {
	return &Tracker{Store: store, TTL: ttl}
}

// GetOrCreate loads the sender's state, resetting stale or finished
// conversations to idle rather than erroring.
func (t *Tracker) GetOrCreate(ctx context.Context, instanceID, sender string) (models.ConversationState, error) {
	state, err := t.Store.Get(ctx, instanceID, sender)
	if err != nil {
		return models.ConversationState{}, err
	}
	now := time.Now()
	if state == nil || state.Expired(t.TTL, now) {
		return models.ConversationState{
			InstanceID:      instanceID,
			Sender:          sender,
			Stage:           models.StageIdle,
			CustomerContact: sender,
			UpdatedAt:       now,
		}, nil
	}
	return *state, nil
}

// Save persists the updated state.
func (t *Tracker) Save(ctx context.Context, state models.ConversationState) error {
	return t.Store.Save(ctx, state)
}
