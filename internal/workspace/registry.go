// Package workspace keeps the live storefront sessions of this process. Each session
// owns a backend client and the screens built on top of it.
package workspace

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/pcstore-storefront/internal/address"
	"github.com/angelmondragon/pcstore-storefront/internal/appstate"
	"github.com/angelmondragon/pcstore-storefront/internal/buildpc"
	"github.com/angelmondragon/pcstore-storefront/internal/cart"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	"github.com/angelmondragon/pcstore-storefront/internal/checkout"
	"github.com/angelmondragon/pcstore-storefront/internal/cron"
	"github.com/angelmondragon/pcstore-storefront/internal/notify"
	"github.com/angelmondragon/pcstore-storefront/internal/search"
	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	"github.com/angelmondragon/pcstore-storefront/pkg/auth/session"
	"github.com/angelmondragon/pcstore-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/metrics"
	redisclient "github.com/angelmondragon/pcstore-storefront/pkg/redis"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

const (
	SweepJobName = "session_sweep"

	SignedOutNotice = "Your session has expired, please sign in again."

	hookTimeout = 5 * time.Second
)

// TokenStore persists session credentials. *session.Manager satisfies it.
type TokenStore interface {
	Save(ctx context.Context, sessionID string, tokens auth.Tokens) error
	Load(ctx context.Context, sessionID string) (auth.Tokens, error)
	Revoke(ctx context.Context, sessionID string) error
}

type Deps struct {
	Config config.Config
	Logger *logger.Logger
	// Tokens is optional; without it sessions do not survive a restart.
	Tokens TokenStore
	// Cache is optional; it shares categories and search results between sessions.
	Cache          *redisclient.Client
	Places         address.Service
	HTTPClient     *http.Client
	CartMetrics    *metrics.CartMetrics
	BackendMetrics *metrics.BackendMetrics
	SessionMetrics *metrics.SessionMetrics
	Clock          func() time.Time
}

// Workspace is one signed-in shopper.
type Workspace struct {
	ID            string
	Client        *storeapi.Client
	Notifications *notify.Inbox
	Cart          cart.Service
	Build         buildpc.Service
	Checkout      checkout.Service
	State         *appstate.State
	Search        *search.Service

	lastSeen atomic.Int64
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

// LastSeen is when the workspace was last handed to a request.
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

func (w *Workspace) close(ctx context.Context) error {
	w.Search.Cancel()
	return multierr.Combine(
		w.Cart.Close(ctx),
		w.Build.Close(ctx),
	)
}

type Registry struct {
	cfg     config.Config
	logg    *logger.Logger
	tokens  TokenStore
	cache   *redisclient.Client
	places  address.Service
	http    *http.Client
	cartM   *metrics.CartMetrics
	backM   *metrics.BackendMetrics
	metrics *metrics.SessionMetrics
	now     func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	rehydrate  singleflight.Group
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(deps.Config.Backend.BaseURL) == "" {
		return nil, fmt.Errorf("backend base url required")
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: deps.Config.Backend.Timeout}
	}
	if deps.Places == nil {
		deps.Places = address.NewService(nil)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Registry{
		cfg:        deps.Config,
		logg:       deps.Logger,
		tokens:     deps.Tokens,
		cache:      deps.Cache,
		places:     deps.Places,
		http:       deps.HTTPClient,
		cartM:      deps.CartMetrics,
		backM:      deps.BackendMetrics,
		metrics:    deps.SessionMetrics,
		now:        deps.Clock,
		workspaces: make(map[string]*Workspace),
	}, nil
}

// Open starts a session for the given backend credentials and warms its state.
// A warm-up that finds the credentials rejected closes the session again.
func (r *Registry) Open(ctx context.Context, tokens auth.Tokens) (*Workspace, error) {
	tokens.Access = strings.TrimSpace(tokens.Access)
	tokens.Refresh = strings.TrimSpace(tokens.Refresh)
	if tokens.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}
	if _, err := auth.InspectAccessToken(tokens.Access); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}

	id := session.NewID()
	ws, err := r.build(id, tokens)
	if err != nil {
		return nil, err
	}
	ctx = r.logg.WithSessionID(ctx, id)
	r.persist(ctx, id, tokens)
	r.store(ws)
	r.metrics.IncEvent("opened")

	if err := ws.State.RefreshAll(ctx); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) || !ws.Client.SignedIn() {
			_ = r.Close(ctx, id)
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "sign in to continue")
		}
		r.logg.Warn(ctx, fmt.Sprintf("session warm-up incomplete: %v", err))
	}
	r.logg.Info(ctx, "session opened")
	return ws, nil
}

// Get returns the live session, bringing it back from the token store when this
// process has not seen it yet.
func (r *Registry) Get(ctx context.Context, id string) (*Workspace, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session id is required")
	}
	if ws := r.lookup(id); ws != nil {
		ws.touch(r.now())
		return ws, nil
	}
	if r.tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session not found")
	}

	v, err, _ := r.rehydrate.Do(id, func() (any, error) {
		if ws := r.lookup(id); ws != nil {
			return ws, nil
		}
		tokens, err := r.tokens.Load(ctx, id)
		if err != nil {
			if stdErrors.Is(err, session.ErrSessionNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading session")
		}
		ws, err := r.build(id, tokens)
		if err != nil {
			return nil, err
		}
		r.store(ws)
		r.metrics.IncEvent("rehydrated")
		r.logg.Info(r.logg.WithSessionID(ctx, id), "session rehydrated")
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	ws := v.(*Workspace)
	ws.touch(r.now())
	return ws, nil
}

// Close commits what the session still holds, forgets it and revokes its stored credentials.
func (r *Registry) Close(ctx context.Context, id string) error {
	ws := r.remove(id)
	ctx = r.logg.WithSessionID(ctx, id)

	var err error
	if ws != nil {
		err = ws.close(ctx)
		r.metrics.IncEvent("closed")
	}
	if r.tokens != nil {
		err = multierr.Append(err, r.tokens.Revoke(ctx, id))
	}
	if ws == nil && r.tokens == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	if err != nil {
		r.logg.Error(ctx, "session close failed", err)
	}
	return err
}

// CloseAll commits and drops every live session. Stored credentials are kept so
// sessions come back after a restart.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()
	r.metrics.SetOpen(0)

	var err error
	for id, ws := range all {
		if cerr := ws.close(r.logg.WithSessionID(ctx, id)); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close session %s: %w", id, cerr))
		}
	}
	return err
}

// Sweep closes sessions idle for longer than the configured TTL.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	ttl := r.cfg.Session.TTL
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var idle []string
	for id, ws := range r.workspaces {
		if ws.LastSeen().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	var err error
	for _, id := range idle {
		err = multierr.Append(err, r.Close(ctx, id))
		r.metrics.IncEvent("expired")
	}
	return len(idle), err
}

type sweepJob struct {
	registry *Registry
}

func (j sweepJob) Name() string { return SweepJobName }

func (j sweepJob) Run(ctx context.Context) error {
	r := j.registry
	n, err := r.Sweep(ctx)
	if n > 0 {
		r.logg.Info(r.logg.WithField(ctx, "expired", n), "idle sessions closed")
	}
	return err
}

// SweepJob runs Sweep on the cron service.
func (r *Registry) SweepJob() cron.Job {
	return sweepJob{registry: r}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

func (r *Registry) build(id string, tokens auth.Tokens) (*Workspace, error) {
	base := r.logg.WithSessionID(context.Background(), id)
	inbox := notify.NewInbox(r.cfg.Cart.NotificationBuffer)

	client, err := storeapi.New(r.cfg.Backend.BaseURL, tokens,
		storeapi.WithHTTPClient(r.http),
		storeapi.WithLogger(r.logg),
		storeapi.WithMetrics(r.backM),
		storeapi.WithRefreshPath(r.cfg.Backend.RefreshPath),
		storeapi.WithRefreshSkew(r.cfg.Backend.RefreshSkew),
		storeapi.OnTokensChanged(func(next auth.Tokens) {
			r.persist(base, id, next)
		}),
		storeapi.OnSignOut(func() {
			inbox.Warn(SignedOutNotice)
			r.revoke(base, id)
		}),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building backend client")
	}

	opts := cartsync.Options{
		Debounce:      r.cfg.Cart.CommitDebounce,
		CommitTimeout: r.cfg.Cart.CommitTimeout,
		Logger:        r.logg,
		Metrics:       r.cartM,
		Notifier:      inbox,
		Context:       base,
	}
	cartSvc, err := cart.NewService(client, opts)
	if err != nil {
		return nil, err
	}
	buildSvc, err := buildpc.NewService(client, opts)
	if err != nil {
		return nil, err
	}
	checkoutSvc, err := checkout.NewService(cartSvc, client, r.logg)
	if err != nil {
		return nil, err
	}

	stateDeps := appstate.Deps{
		Account:     client,
		Cart:        cartSvc,
		CategoryTTL: r.cfg.Search.CategoryTTL,
		Logger:      r.logg,
		Clock:       r.now,
	}
	searchDeps := search.Deps{
		Products:  client,
		Addresses: r.places,
		Debounce:  r.cfg.Search.Debounce,
		ResultTTL: r.cfg.Search.ResultTTL,
		Logger:    r.logg,
	}
	if r.cache != nil {
		stateDeps.Cache = r.cache
		searchDeps.Cache = r.cache
	}
	state, err := appstate.New(stateDeps)
	if err != nil {
		return nil, err
	}
	searchSvc, err := search.New(searchDeps)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		ID:            id,
		Client:        client,
		Notifications: inbox,
		Cart:          cartSvc,
		Build:         buildSvc,
		Checkout:      checkoutSvc,
		State:         state,
		Search:        searchSvc,
	}
	ws.touch(r.now())
	return ws, nil
}

func (r *Registry) lookup(id string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workspaces[id]
}

func (r *Registry) store(ws *Workspace) {
	r.mu.Lock()
	r.workspaces[ws.ID] = ws
	n := len(r.workspaces)
	r.mu.Unlock()
	r.metrics.SetOpen(n)
}

func (r *Registry) remove(id string) *Workspace {
	r.mu.Lock()
	ws := r.workspaces[id]
	delete(r.workspaces, id)
	n := len(r.workspaces)
	r.mu.Unlock()
	r.metrics.SetOpen(n)
	return ws
}

func (r *Registry) persist(ctx context.Context, id string, tokens auth.Tokens) {
	if r.tokens == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	if err := r.tokens.Save(ctx, id, tokens); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("persisting session tokens failed: %v", err))
	}
}

func (r *Registry) revoke(ctx context.Context, id string) {
	if r.tokens == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	if err := r.tokens.Revoke(ctx, id); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("revoking session tokens failed: %v", err))
	}
}
