package checkout

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

func TestValidateCart(t *testing.T) {
	ok := cartpolicy.NewSnapshot([]cartpolicy.Line{
		{ProductID: "a", UnitPrice: decimal.NewFromInt(100), StockAvailable: 3, Quantity: 2},
	})
	if err := ValidateCart(ok); err != nil {
		t.Fatalf("expected valid cart, got %v", err)
	}

	if err := ValidateCart(cartpolicy.Snapshot{}); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for empty cart, got %v", err)
	}

	over := cartpolicy.NewSnapshot([]cartpolicy.Line{
		{ProductID: "a", Name: "A", UnitPrice: decimal.NewFromInt(100), StockAvailable: 3, Quantity: 5},
		{ProductID: "b", UnitPrice: decimal.NewFromInt(600_000_000), StockAvailable: 9, Quantity: 2},
	})
	err := ValidateCart(over)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	violations := typed.Details().(map[string]any)["violations"].([]ViolationDetail)
	if len(violations) != 2 {
		t.Fatalf("expected stock and budget violations, got %+v", violations)
	}
	if violations[0].ProductID != "a" || violations[0].Reason != cartpolicy.ReasonStockAdjusted || violations[0].Stock != 3 {
		t.Fatalf("unexpected stock violation %+v", violations[0])
	}
	if violations[1].ProductID != "" || violations[1].Reason != cartpolicy.ReasonBudgetExceeded {
		t.Fatalf("unexpected budget violation %+v", violations[1])
	}
}
