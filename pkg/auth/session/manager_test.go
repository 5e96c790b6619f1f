package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) SessionKey(sessionID string) string {
	return "sess:" + sessionID
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, keyer: store, ttl: time.Hour}, store
}

func TestManagerSaveLoadRevoke(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()

	access, err := auth.MintAccessToken("s", time.Now(), time.Minute, auth.AccessTokenPayload{UserID: "u-9"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id := NewID()
	if err := manager.Save(ctx, id, auth.Tokens{Access: access, Refresh: "r-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.ttls["sess:"+id] != time.Hour {
		t.Fatalf("expected ttl to be applied, got %v", store.ttls["sess:"+id])
	}

	tokens, err := manager.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tokens.Access != access || tokens.Refresh != "r-1" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}

	if err := manager.Revoke(ctx, id); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := manager.Load(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revoke, got %v", err)
	}
}

func TestManagerLoadRejectsUnknownAndEmpty(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()

	if _, err := manager.Load(ctx, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found for empty id, got %v", err)
	}
	if _, err := manager.Load(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	store.data["sess:blank"] = `{"tokens":{"accessToken":""}}`
	if _, err := manager.Load(ctx, "blank"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected blank record to be treated as missing, got %v", err)
	}

	store.data["sess:broken"] = `{`
	if _, err := manager.Load(ctx, "broken"); err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected nil client to fail")
	}
}
