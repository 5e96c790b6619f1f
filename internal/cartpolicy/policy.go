// Package cartpolicy decides whether a quantity edit on a cart or build line is acceptable.
// Everything here is pure: the same snapshot and request always yield the same Result.
package cartpolicy

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PerItemMax caps the quantity of a single line.
const PerItemMax = 9999

const maxTotalPriceVND = 1_000_000_000

// MaxTotalPrice is the monetary ceiling of a whole snapshot.
func MaxTotalPrice() decimal.Decimal {
	return decimal.NewFromInt(maxTotalPriceVND)
}

type Reason string

const (
	ReasonOK              Reason = "OK"
	ReasonStockAdjusted   Reason = "STOCK_ADJUSTED"
	ReasonInvalidQuantity Reason = "INVALID_QUANTITY"
	ReasonItemCapExceeded Reason = "ITEM_CAP_EXCEEDED"
	ReasonBudgetExceeded  Reason = "BUDGET_EXCEEDED"
	ReasonOutOfStock      Reason = "OUT_OF_STOCK"
	ReasonLineNotFound    Reason = "LINE_NOT_FOUND"
)

// Accepted reports whether the edit may be applied. STOCK_ADJUSTED is a soft success.
func (r Reason) Accepted() bool {
	return r == ReasonOK || r == ReasonStockAdjusted
}

func (r Reason) String() string {
	return string(r)
}

// Result is the outcome of evaluating one quantity edit.
// AcceptedQuantity equals PreviousQuantity whenever Rejected is true.
type Result struct {
	LineID            string          `json:"lineId"`
	PreviousQuantity  int             `json:"previousQuantity"`
	RequestedQuantity int             `json:"requestedQuantity"`
	AcceptedQuantity  int             `json:"acceptedQuantity"`
	Rejected          bool            `json:"rejected"`
	Reason            Reason          `json:"reason"`
	AdjustedTotal     decimal.Decimal `json:"adjustedTotal"`
	// MaxQuantityForBudget is only set for BUDGET_EXCEEDED.
	MaxQuantityForBudget *int `json:"maxQuantityForBudget,omitempty"`
}

// Changed reports whether applying the result alters the line.
func (r Result) Changed() bool {
	return !r.Rejected && r.Reason.Accepted() && r.AcceptedQuantity != r.PreviousQuantity
}

// Evaluate checks requested against the line identified by lineID.
//
// Order of checks: unknown line, non-positive quantity, per-item cap, out of stock,
// stock (auto-adjusted), budget. Cap and budget violations reject and keep the previous
// quantity; stock violations are clamped and accepted.
func Evaluate(s Snapshot, lineID string, requested int) Result {
	_, idx, ok := s.Find(lineID)
	if !ok {
		return Result{
			LineID:            lineID,
			RequestedQuantity: requested,
			Rejected:          true,
			Reason:            ReasonLineNotFound,
			AdjustedTotal:     s.Total(),
		}
	}
	return evaluateAt(s, idx, requested)
}

// EvaluateRaw evaluates text typed into a quantity control.
func EvaluateRaw(s Snapshot, lineID, raw string) Result {
	requested, err := parseRequested(raw)
	if err != nil {
		line, _, ok := s.Find(lineID)
		if !ok {
			return Evaluate(s, lineID, 0)
		}
		return Result{
			LineID:           lineID,
			PreviousQuantity: line.Quantity,
			AcceptedQuantity: line.Quantity,
			Rejected:         true,
			Reason:           ReasonInvalidQuantity,
			AdjustedTotal:    s.Total(),
		}
	}
	return Evaluate(s, lineID, requested)
}

// EvaluateAdd checks adding requested units of candidate to the snapshot.
// An existing line for the same product is topped up; in a build, a line occupying the
// same component slot is replaced by the candidate.
func EvaluateAdd(s Snapshot, candidate Line, requested int) Result {
	if existing, idx, ok := s.Find(candidate.ProductID); ok {
		if requested <= 0 {
			return rejectAt(s, existing, ReasonInvalidQuantity, requested)
		}
		return evaluateAt(s, idx, existing.Quantity+requested)
	}

	lines := make([]Line, 0, len(s.Lines)+1)
	for _, line := range s.Lines {
		if candidate.ComponentType != "" && line.ComponentType == candidate.ComponentType {
			continue
		}
		lines = append(lines, line)
	}
	candidate.Quantity = 0
	lines = append(lines, candidate)
	res := evaluateAt(Snapshot{Lines: lines}, len(lines)-1, requested)
	if res.Rejected {
		res.AdjustedTotal = s.Total()
	}
	return res
}

var errNotInteger = errors.New("quantity must be a whole number")

// parseRequested converts UI text into a quantity. Integral values written as decimals ("3.0")
// are accepted; values too large for an int map above PerItemMax so they fail the cap check.
func parseRequested(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errNotInteger
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if n > math.MaxInt32 {
			return PerItemMax + 1, nil
		}
		if n < math.MinInt32 {
			return 0, nil
		}
		return int(n), nil
	} else if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(trimmed, "-") {
			return 0, nil
		}
		return PerItemMax + 1, nil
	}

	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errNotInteger
	}
	if f > PerItemMax {
		return PerItemMax + 1, nil
	}
	if f < 0 {
		return 0, nil
	}
	return int(f), nil
}

// MaxQuantityForBudget is the largest quantity of lineID that keeps the snapshot within
// MaxTotalPrice. ok is false when the line is unknown or free, meaning no budget limit applies.
func MaxQuantityForBudget(s Snapshot, lineID string) (limit int, ok bool) {
	line, idx, found := s.Find(lineID)
	if !found || line.UnitPrice.Sign() <= 0 {
		return 0, false
	}
	return budgetHeadroom(s.totalExcept(idx), line.UnitPrice), true
}

func evaluateAt(s Snapshot, idx int, requested int) Result {
	line := s.Lines[idx]

	if requested <= 0 {
		return rejectAt(s, line, ReasonInvalidQuantity, requested)
	}
	if requested > PerItemMax {
		return rejectAt(s, line, ReasonItemCapExceeded, requested)
	}
	if line.OutOfStock() {
		return rejectAt(s, line, ReasonOutOfStock, requested)
	}

	accepted := requested
	reason := ReasonOK
	if requested > line.StockAvailable {
		accepted = min(line.StockAvailable, PerItemMax)
		reason = ReasonStockAdjusted
	}

	other := s.totalExcept(idx)
	total := other.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(accepted))))
	if line.UnitPrice.Sign() > 0 && total.GreaterThan(MaxTotalPrice()) {
		res := rejectAt(s, line, ReasonBudgetExceeded, requested)
		if limit, ok := MaxQuantityForBudget(s, line.ProductID); ok {
			res.MaxQuantityForBudget = &limit
		}
		return res
	}

	return Result{
		LineID:            line.ProductID,
		PreviousQuantity:  line.Quantity,
		RequestedQuantity: requested,
		AcceptedQuantity:  accepted,
		Reason:            reason,
		AdjustedTotal:     total,
	}
}

func rejectAt(s Snapshot, line Line, reason Reason, requested int) Result {
	return Result{
		LineID:            line.ProductID,
		PreviousQuantity:  line.Quantity,
		RequestedQuantity: requested,
		AcceptedQuantity:  line.Quantity,
		Rejected:          true,
		Reason:            reason,
		AdjustedTotal:     s.Total(),
	}
}

func budgetHeadroom(other, unitPrice decimal.Decimal) int {
	remaining := MaxTotalPrice().Sub(other)
	if remaining.Sign() <= 0 {
		return 0
	}
	quotient, _ := remaining.QuoRem(unitPrice, 0)
	if quotient.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return math.MaxInt32
	}
	return int(quotient.IntPart())
}
