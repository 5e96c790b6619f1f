package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

const Screen = "cart"

// Backend is the slice of the store API the cart screen needs.
type Backend interface {
	GetCart(ctx context.Context) ([]storeapi.CartLine, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	DeleteCartLine(ctx context.Context, cartID string) error
	AddToCart(ctx context.Context, productID string, quantity int) error
}

// Service exposes the shopping cart screen.
type Service interface {
	Load(ctx context.Context) (cartsync.View, error)
	View() cartsync.View
	Snapshot() cartpolicy.Snapshot
	SetQuantity(ctx context.Context, productID string, requested int) (cartpolicy.Result, error)
	SetQuantityRaw(ctx context.Context, productID, raw string) (cartpolicy.Result, error)
	Remove(ctx context.Context, cartID string) error
	Add(ctx context.Context, product storeapi.Product, quantity int) (cartpolicy.Result, error)
	Sync(ctx context.Context) error
	Close(ctx context.Context) error
}

type remote struct {
	api Backend
}

func (r remote) Fetch(ctx context.Context) ([]cartpolicy.Line, error) {
	rows, err := r.api.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	return cartsync.FromBackend(rows), nil
}

func (r remote) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return r.api.UpdateQuantity(ctx, productID, quantity)
}

type service struct {
	api     Backend
	session *cartsync.Session
}

// NewService builds the cart screen on top of api. opts.Screen is forced to "cart".
func NewService(api Backend, opts cartsync.Options) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("cart backend required")
	}
	opts.Screen = Screen
	return &service{
		api:     api,
		session: cartsync.New(remote{api: api}, opts),
	}, nil
}

func (s *service) Load(ctx context.Context) (cartsync.View, error) {
	if _, err := s.session.Reload(ctx); err != nil {
		return cartsync.View{}, err
	}
	return s.session.View(), nil
}

func (s *service) View() cartsync.View {
	return s.session.View()
}

func (s *service) Snapshot() cartpolicy.Snapshot {
	return s.session.Snapshot()
}

func (s *service) SetQuantity(ctx context.Context, productID string, requested int) (cartpolicy.Result, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return cartpolicy.Result{}, err
	}
	return s.session.SetQuantity(ctx, strings.TrimSpace(productID), requested)
}

func (s *service) SetQuantityRaw(ctx context.Context, productID, raw string) (cartpolicy.Result, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return cartpolicy.Result{}, err
	}
	return s.session.SetQuantityRaw(ctx, strings.TrimSpace(productID), raw)
}

// Remove deletes the cart row identified by cartID, then reloads.
func (s *service) Remove(ctx context.Context, cartID string) error {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	return s.session.Mutate(ctx, "delete_cart_line", func(ctx context.Context) error {
		return s.api.DeleteCartLine(ctx, cartID)
	})
}

// Add puts quantity units of product into the cart after the same policy checks a
// quantity edit gets. Pending edits are committed first so the backend adds on top of
// the quantity the shopper sees.
func (s *service) Add(ctx context.Context, product storeapi.Product, quantity int) (cartpolicy.Result, error) {
	if strings.TrimSpace(product.ID) == "" {
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return cartpolicy.Result{}, err
	}
	if err := s.session.Flush(ctx); err != nil {
		return cartpolicy.Result{}, err
	}

	candidate := cartsync.Candidate(product)
	// slots only exist in a build
	candidate.ComponentType = ""
	res := cartpolicy.EvaluateAdd(s.session.Snapshot(), candidate, quantity)
	if res.Rejected {
		return res, nil
	}
	delta := res.AcceptedQuantity - res.PreviousQuantity
	if delta <= 0 {
		return res, nil
	}

	err := s.session.Mutate(ctx, "add_to_cart", func(ctx context.Context) error {
		return s.api.AddToCart(ctx, product.ID, delta)
	})
	return res, err
}

// Sync commits pending quantity edits now.
func (s *service) Sync(ctx context.Context) error {
	return s.session.Flush(ctx)
}

func (s *service) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

func (s *service) ensureLoaded(ctx context.Context) error {
	if s.session.Loaded() {
		return nil
	}
	_, err := s.session.Reload(ctx)
	return err
}
