// Package search runs the type-ahead lookups of a session. Every lookup waits for the
// shopper to stop typing and only the newest request of each kind gets an answer.
package search

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/pcstore-storefront/internal/address"
	"github.com/angelmondragon/pcstore-storefront/pkg/debounce"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	redisclient "github.com/angelmondragon/pcstore-storefront/pkg/redis"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
	"github.com/angelmondragon/pcstore-storefront/pkg/types"
)

const (
	DefaultDebounce  = 500 * time.Millisecond
	DefaultResultTTL = time.Minute
	minAddressQuery  = 3
)

type productSearcher interface {
	SearchProducts(ctx context.Context, keyword string) ([]storeapi.Product, error)
}

// resultCache is the part of the Redis client used to share search results between sessions.
type resultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogKey(parts ...string) string
}

type Deps struct {
	Products  productSearcher
	Addresses address.Service
	// Cache is optional.
	Cache     resultCache
	Debounce  time.Duration
	ResultTTL time.Duration
	Logger    *logger.Logger
}

type Service struct {
	products  productSearcher
	addresses address.Service
	cache     resultCache
	ttl       time.Duration
	logg      *logger.Logger

	productCalls *debounce.Latest[[]storeapi.Product]
	addressCalls *debounce.Latest[[]address.Suggestion]
}

func New(deps Deps) (*Service, error) {
	if deps.Products == nil {
		return nil, fmt.Errorf("product searcher required")
	}
	if deps.Addresses == nil {
		deps.Addresses = address.NewService(nil)
	}
	if deps.Debounce <= 0 {
		deps.Debounce = DefaultDebounce
	}
	if deps.ResultTTL <= 0 {
		deps.ResultTTL = DefaultResultTTL
	}
	if deps.Logger == nil {
		deps.Logger = logger.New(logger.Options{ServiceName: "storefront", Output: io.Discard})
	}
	return &Service{
		products:     deps.Products,
		addresses:    deps.Addresses,
		cache:        deps.Cache,
		ttl:          deps.ResultTTL,
		logg:         deps.Logger,
		productCalls: debounce.NewLatest[[]storeapi.Product](deps.Debounce),
		addressCalls: debounce.NewLatest[[]address.Suggestion](deps.Debounce),
	}, nil
}

// IsSuperseded reports whether err means a newer search replaced the call.
func IsSuperseded(err error) bool {
	return stdErrors.Is(err, debounce.ErrSuperseded)
}

// Products searches the catalog by keyword. A blank keyword cancels any pending
// search and yields no results.
func (s *Service) Products(ctx context.Context, keyword string) ([]storeapi.Product, error) {
	keyword = strings.Join(strings.Fields(keyword), " ")
	if keyword == "" {
		s.productCalls.Cancel()
		return []storeapi.Product{}, nil
	}
	out, err := s.productCalls.Do(ctx, func(ctx context.Context) ([]storeapi.Product, error) {
		return s.searchProducts(ctx, keyword)
	})
	return out, superseded(err)
}

// Addresses suggests delivery addresses once the query is long enough to be useful.
func (s *Service) Addresses(ctx context.Context, query string) ([]address.Suggestion, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minAddressQuery {
		s.addressCalls.Cancel()
		return []address.Suggestion{}, nil
	}
	out, err := s.addressCalls.Do(ctx, func(ctx context.Context) ([]address.Suggestion, error) {
		return s.addresses.Suggest(ctx, address.SuggestRequest{Query: query})
	})
	return out, superseded(err)
}

// ResolveAddress turns a picked suggestion into a structured address. It is not debounced.
func (s *Service) ResolveAddress(ctx context.Context, placeID string) (types.Address, error) {
	return s.addresses.Resolve(ctx, address.ResolveRequest{PlaceID: placeID})
}

// Cancel supersedes every lookup in flight.
func (s *Service) Cancel() {
	s.productCalls.Cancel()
	s.addressCalls.Cancel()
}

func (s *Service) searchProducts(ctx context.Context, keyword string) ([]storeapi.Product, error) {
	key := ""
	if s.cache != nil {
		key = s.cache.CatalogKey("search", keyword)
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached []storeapi.Product
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		} else if !stdErrors.Is(err, redisclient.ErrMiss) {
			s.logg.Warn(ctx, fmt.Sprintf("search cache read failed: %v", err))
		}
	}

	products, err := s.products.SearchProducts(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []storeapi.Product{}
	}
	if s.cache != nil {
		if payload, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
				s.logg.Warn(ctx, fmt.Sprintf("search cache write failed: %v", err))
			}
		}
	}
	return products, nil
}

func superseded(err error) error {
	if err == nil || !IsSuperseded(err) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "superseded by a newer search")
}
