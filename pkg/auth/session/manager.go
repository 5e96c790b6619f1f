package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	redisclient "github.com/angelmondragon/pcstore-storefront/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("storefront session not found")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Manager persists the backend credentials of storefront sessions so a session
// survives a restart of this process or lands on another replica.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

type record struct {
	Tokens  auth.Tokens `json:"tokens"`
	SavedAt time.Time   `json:"savedAt"`
	UserID  string      `json:"userId,omitempty"`
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, ttl time.Duration) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{store: client, keyer: client, ttl: ttl}, nil
}

// NewID produces a session identifier.
func NewID() string {
	return uuid.NewString()
}

// Save stores tokens for the session and restarts its TTL.
func (m *Manager) Save(ctx context.Context, sessionID string, tokens auth.Tokens) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	rec := record{Tokens: tokens, SavedAt: time.Now().UTC()}
	if claims, err := auth.InspectAccessToken(tokens.Access); err == nil {
		rec.UserID = claims.UserID
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return m.store.Set(ctx, m.keyer.SessionKey(sessionID), string(payload), m.ttl)
}

// Load returns the tokens saved for the session or ErrSessionNotFound.
func (m *Manager) Load(ctx context.Context, sessionID string) (auth.Tokens, error) {
	if strings.TrimSpace(sessionID) == "" {
		return auth.Tokens{}, ErrSessionNotFound
	}
	raw, err := m.store.Get(ctx, m.keyer.SessionKey(sessionID))
	if err != nil {
		return auth.Tokens{}, wrapNotFound(err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return auth.Tokens{}, fmt.Errorf("decoding session: %w", err)
	}
	if rec.Tokens.Empty() {
		return auth.Tokens{}, ErrSessionNotFound
	}
	return rec.Tokens, nil
}

// Revoke deletes the stored session.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.keyer.SessionKey(sessionID))
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrSessionNotFound
	}
	return err
}
