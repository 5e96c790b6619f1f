// Package checkout turns the shopper's cart into an order.
package checkout

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

type cartScreen interface {
	Sync(ctx context.Context) error
	Load(ctx context.Context) (cartsync.View, error)
	Snapshot() cartpolicy.Snapshot
}

type paymentCreator interface {
	CreatePayment(ctx context.Context, typePayment string) (storeapi.PaymentResult, error)
}

// Result tells the UI where to go next: the order page for cash on delivery, the
// gateway for online payments.
type Result struct {
	PaymentType enums.PaymentType `json:"paymentType"`
	OrderID     string            `json:"orderId,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	Total       string            `json:"total"`
	ItemCount   int               `json:"itemCount"`
}

type Service interface {
	Checkout(ctx context.Context, typePayment string) (Result, error)
}

type service struct {
	cart     cartScreen
	payments paymentCreator
	logg     *logger.Logger
	inFlight sync.Mutex
}

func NewService(cart cartScreen, payments paymentCreator, logg *logger.Logger) (Service, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart screen required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment creator required")
	}
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "storefront", Output: io.Discard})
	}
	return &service{cart: cart, payments: payments, logg: logg}, nil
}

// Checkout commits pending cart edits, re-reads the cart, checks it can be ordered and
// creates the payment. The cart is reloaded afterwards since the backend empties it.
func (s *service) Checkout(ctx context.Context, typePayment string) (Result, error) {
	paymentType, err := enums.ParsePaymentType(typePayment)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "typePayment must be one of COD, MOMO, VNPAY")
	}
	if !s.inFlight.TryLock() {
		return Result{}, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer s.inFlight.Unlock()

	ctx = s.logg.WithField(ctx, "payment_type", paymentType.String())

	if err := s.cart.Sync(ctx); err != nil {
		return Result{}, err
	}
	if _, err := s.cart.Load(ctx); err != nil {
		return Result{}, err
	}
	snap := s.cart.Snapshot()
	if err := ValidateCart(snap); err != nil {
		return Result{}, err
	}

	payment, err := s.payments.CreatePayment(ctx, paymentType.String())
	if err != nil {
		s.logg.Error(ctx, "create payment failed", err)
		return Result{}, err
	}
	if paymentType.RequiresRedirect() && payment.RedirectURL == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway returned no redirect url")
	}

	if _, err := s.cart.Load(ctx); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("reload after checkout failed: %v", err))
	}
	s.logg.Info(s.logg.WithField(ctx, "order_id", payment.OrderID), "checkout completed")

	return Result{
		PaymentType: paymentType,
		OrderID:     payment.OrderID,
		RedirectURL: payment.RedirectURL,
		Total:       snap.Total().String(),
		ItemCount:   snap.ItemCount(),
	}, nil
}
