package cartpolicy

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
)

// Line is one product row of a cart or one filled slot of a build.
// ProductID doubles as the line identifier because the quantity endpoints are keyed by product.
type Line struct {
	CartID          string              `json:"cartId,omitempty"`
	ProductID       string              `json:"productId"`
	Name            string              `json:"name,omitempty"`
	Image           string              `json:"image,omitempty"`
	ComponentType   enums.ComponentType `json:"componentType,omitempty"`
	UnitPrice       decimal.Decimal     `json:"unitPrice"`
	DiscountPercent int                 `json:"discountPercent"`
	StockAvailable  int                 `json:"stockAvailable"`
	Quantity        int                 `json:"quantity"`
}

// OutOfStock lines are rendered but cannot be edited or purchased.
func (l Line) OutOfStock() bool {
	return l.StockAvailable <= 0
}

// EffectiveQuantity is the quantity that counts towards totals.
func (l Line) EffectiveQuantity() int {
	if l.OutOfStock() || l.Quantity <= 0 {
		return 0
	}
	return min(l.Quantity, l.StockAvailable)
}

// Subtotal is UnitPrice times EffectiveQuantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.EffectiveQuantity())))
}

// Snapshot is an ordered view of cart lines. Totals are always derived from the lines.
type Snapshot struct {
	Lines []Line `json:"lines"`
}

// NewSnapshot copies lines so later mutation of the argument cannot leak in.
func NewSnapshot(lines []Line) Snapshot {
	out := make([]Line, len(lines))
	copy(out, lines)
	return Snapshot{Lines: out}
}

func (s Snapshot) Clone() Snapshot {
	return NewSnapshot(s.Lines)
}

func (s Snapshot) Len() int {
	return len(s.Lines)
}

// Find returns the line with the given product id and its position.
func (s Snapshot) Find(lineID string) (Line, int, bool) {
	for i, line := range s.Lines {
		if line.ProductID == lineID {
			return line, i, true
		}
	}
	return Line{}, -1, false
}

// FindComponent returns the line occupying a build slot.
func (s Snapshot) FindComponent(component enums.ComponentType) (Line, int, bool) {
	for i, line := range s.Lines {
		if line.ComponentType == component {
			return line, i, true
		}
	}
	return Line{}, -1, false
}

func (s Snapshot) Total() decimal.Decimal {
	return s.totalExcept(-1)
}

func (s Snapshot) totalExcept(skip int) decimal.Decimal {
	total := decimal.Zero
	for i, line := range s.Lines {
		if i == skip {
			continue
		}
		total = total.Add(line.Subtotal())
	}
	return total
}

// ItemCount sums effective quantities, the number shown on the cart badge.
func (s Snapshot) ItemCount() int {
	count := 0
	for _, line := range s.Lines {
		count += line.EffectiveQuantity()
	}
	return count
}

// WithQuantity returns a copy with the quantity of lineID replaced. Unknown ids return an unchanged copy.
func (s Snapshot) WithQuantity(lineID string, quantity int) Snapshot {
	out := s.Clone()
	if _, idx, ok := out.Find(lineID); ok {
		out.Lines[idx].Quantity = quantity
	}
	return out
}

// Violation describes a line, or the snapshot as a whole when LineID is empty, that breaks an invariant.
type Violation struct {
	LineID string `json:"lineId,omitempty"`
	Reason Reason `json:"reason"`
}

// Violations lists everything that would make the snapshot unfit for checkout.
func (s Snapshot) Violations() []Violation {
	var out []Violation
	for _, line := range s.Lines {
		switch {
		case line.OutOfStock():
			out = append(out, Violation{LineID: line.ProductID, Reason: ReasonOutOfStock})
		case line.Quantity <= 0:
			out = append(out, Violation{LineID: line.ProductID, Reason: ReasonInvalidQuantity})
		case line.Quantity > PerItemMax:
			out = append(out, Violation{LineID: line.ProductID, Reason: ReasonItemCapExceeded})
		case line.Quantity > line.StockAvailable:
			out = append(out, Violation{LineID: line.ProductID, Reason: ReasonStockAdjusted})
		}
	}
	if s.Total().GreaterThan(MaxTotalPrice()) {
		out = append(out, Violation{Reason: ReasonBudgetExceeded})
	}
	return out
}
