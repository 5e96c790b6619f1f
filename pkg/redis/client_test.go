package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/pcstore-storefront/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.CategoriesKey()
	if err := client.Set(ctx, key, `[{"id":"cpu"}]`, 10*time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if mock.ttls[key] != 10*time.Minute {
		t.Fatalf("expected ttl to be forwarded, got %v", mock.ttls[key])
	}
	got, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != `[{"id":"cpu"}]` {
		t.Fatalf("unexpected value %q", got)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	var client *Client
	if err := client.Ping(ctx); err == nil {
		t.Fatal("expected ping on nil client to fail")
	}
	if _, err := client.Get(ctx, "k"); err == nil {
		t.Fatal("expected get on nil client to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.CategoriesKey(); got != "sf:catalog:categories" {
		t.Fatalf("unexpected categories key %s", got)
	}
	if got := client.CatalogKey("search", " RTX 4090 "); got != "sf:catalog:search:rtx 4090" {
		t.Fatalf("unexpected catalog key %s", got)
	}
	if got := client.SessionKey(""); got != "sf:session" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "localhost:6380",
		DB:       2,
		PoolSize: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6379/3", PoolSize: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 || opts.Password != "secret" || opts.PoolSize != 4 {
		t.Fatalf("unexpected url options %+v", opts)
	}
}

type mockCmdable struct {
	data     map[string]string
	ttls     map[string]time.Duration
	counters map[string]int64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		ttls:     make(map[string]time.Duration),
		counters: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.counters[key]++
	return redis.NewIntResult(m.counters[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestSetNXAndIncrWithTTL(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.IdempotencyKey("session-1|POST|/v1/checkout", "abc")
	if key != "sf:idempotency:session-1|post|/v1/checkout:abc" {
		t.Fatalf("unexpected idempotency key %s", key)
	}
	ok, err := client.SetNX(ctx, key, "first", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first setnx should win, got %v %v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, "second", time.Hour)
	if err != nil || ok {
		t.Fatalf("second setnx should lose, got %v %v", ok, err)
	}

	counter := client.RateLimitKey("session_open:1.2.3.4")
	for i := int64(1); i <= 3; i++ {
		got, err := client.IncrWithTTL(ctx, counter, time.Minute)
		if err != nil {
			t.Fatalf("incr failed: %v", err)
		}
		if got != i {
			t.Fatalf("expected count %d, got %d", i, got)
		}
	}
	if mock.ttls[counter] != time.Minute {
		t.Fatalf("expected ttl on first increment, got %v", mock.ttls[counter])
	}
}
