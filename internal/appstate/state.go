// Package appstate is the per-session application state shared by every screen:
// who is signed in, a cart summary for the header badge and the category menu.
package appstate

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	redisclient "github.com/angelmondragon/pcstore-storefront/pkg/redis"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

type Slice string

const (
	SliceAuth       Slice = "auth"
	SliceCart       Slice = "cart"
	SliceCategories Slice = "categories"
)

// Slices lists every slice in refresh order.
func Slices() []Slice {
	return []Slice{SliceAuth, SliceCart, SliceCategories}
}

// ParseSlice converts a path segment into a Slice.
func ParseSlice(value string) (Slice, error) {
	for _, candidate := range Slices() {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown state slice %q", value))
}

const DefaultCategoryTTL = 10 * time.Minute

type AuthState struct {
	SignedIn    bool           `json:"signedIn"`
	User        *storeapi.User `json:"user,omitempty"`
	RefreshedAt *time.Time     `json:"refreshedAt,omitempty"`
}

type CartState struct {
	Loaded    bool   `json:"loaded"`
	Lines     int    `json:"lines"`
	ItemCount int    `json:"itemCount"`
	Total     string `json:"total"`
}

type CategoriesState struct {
	Items       []storeapi.Category `json:"items"`
	Cached      bool                `json:"cached"`
	RefreshedAt *time.Time          `json:"refreshedAt,omitempty"`
}

// Snapshot is a consistent copy of every slice.
type Snapshot struct {
	Auth       AuthState       `json:"auth"`
	Cart       CartState       `json:"cart"`
	Categories CategoriesState `json:"categories"`
}

type account interface {
	SignedIn() bool
	CurrentUser(ctx context.Context) (storeapi.User, error)
	Categories(ctx context.Context) ([]storeapi.Category, error)
}

type cartScreen interface {
	View() cartsync.View
	Load(ctx context.Context) (cartsync.View, error)
}

type Deps struct {
	Account account
	Cart    cartScreen
	// Cache is optional; without it categories are fetched per session.
	Cache       redisclient.Cache
	CategoryTTL time.Duration
	Logger      *logger.Logger
	Clock       func() time.Time
}

type State struct {
	account account
	cart    cartScreen
	cache   redisclient.Cache
	ttl     time.Duration
	logg    *logger.Logger
	now     func() time.Time

	mu         sync.RWMutex
	auth       AuthState
	categories CategoriesState
}

func New(deps Deps) (*State, error) {
	if deps.Account == nil {
		return nil, fmt.Errorf("account client required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart screen required")
	}
	if deps.CategoryTTL <= 0 {
		deps.CategoryTTL = DefaultCategoryTTL
	}
	if deps.Logger == nil {
		deps.Logger = logger.New(logger.Options{ServiceName: "storefront", Output: io.Discard})
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &State{
		account:    deps.Account,
		cart:       deps.Cart,
		cache:      deps.Cache,
		ttl:        deps.CategoryTTL,
		logg:       deps.Logger,
		now:        deps.Clock,
		categories: CategoriesState{Items: []storeapi.Category{}},
	}, nil
}

// Refresh reloads one slice from its source.
func (s *State) Refresh(ctx context.Context, slice Slice) error {
	switch slice {
	case SliceAuth:
		return s.refreshAuth(ctx)
	case SliceCart:
		_, err := s.cart.Load(ctx)
		return err
	case SliceCategories:
		return s.refreshCategories(ctx)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown state slice %q", slice))
	}
}

// RefreshAll reloads every slice concurrently. A failing slice keeps its previous
// value and does not stop the others; all failures are returned together.
func (s *State) RefreshAll(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, slice := range Slices() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Refresh(ctx, slice); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("refresh %s: %w", slice, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

func (s *State) Snapshot() Snapshot {
	view := s.cart.View()

	s.mu.RLock()
	defer s.mu.RUnlock()
	auth := s.auth
	auth.SignedIn = s.account.SignedIn()
	if !auth.SignedIn {
		auth.User = nil
	}
	categories := s.categories
	categories.Items = append([]storeapi.Category(nil), s.categories.Items...)
	return Snapshot{
		Auth: auth,
		Cart: CartState{
			Loaded:    view.Loaded,
			Lines:     len(view.Lines),
			ItemCount: view.ItemCount,
			Total:     view.Total,
		},
		Categories: categories,
	}
}

func (s *State) refreshAuth(ctx context.Context) error {
	user, err := s.account.CurrentUser(ctx)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			s.mu.Lock()
			s.auth = AuthState{}
			s.mu.Unlock()
		}
		return err
	}
	now := s.now().UTC()
	s.mu.Lock()
	s.auth = AuthState{SignedIn: true, User: &user, RefreshedAt: &now}
	s.mu.Unlock()
	return nil
}

func (s *State) refreshCategories(ctx context.Context) error {
	if items, ok := s.cachedCategories(ctx); ok {
		s.storeCategories(items, true)
		return nil
	}

	items, err := s.account.Categories(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = []storeapi.Category{}
	}
	s.storeCategories(items, false)

	if s.cache != nil {
		payload, err := json.Marshal(items)
		if err == nil {
			err = s.cache.Set(ctx, s.cache.CategoriesKey(), payload, s.ttl)
		}
		if err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("category cache write failed: %v", err))
		}
	}
	return nil
}

func (s *State) cachedCategories(ctx context.Context) ([]storeapi.Category, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CategoriesKey())
	if err != nil {
		if !stdErrors.Is(err, redisclient.ErrMiss) {
			s.logg.Warn(ctx, fmt.Sprintf("category cache read failed: %v", err))
		}
		return nil, false
	}
	var items []storeapi.Category
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("category cache entry unreadable: %v", err))
		return nil, false
	}
	return items, true
}

func (s *State) storeCategories(items []storeapi.Category, cached bool) {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = CategoriesState{Items: items, Cached: cached, RefreshedAt: &now}
}

// InvalidateCategories drops the shared cache entry so the next refresh hits the backend.
func (s *State) InvalidateCategories(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, s.cache.CategoriesKey())
}
