package checkout

import (
	"fmt"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

// ViolationDetail is returned to callers when the cart cannot be ordered as is.
type ViolationDetail struct {
	ProductID string            `json:"productId,omitempty"`
	Name      string            `json:"name,omitempty"`
	Reason    cartpolicy.Reason `json:"reason"`
	Quantity  int               `json:"quantity,omitempty"`
	Stock     int               `json:"stock,omitempty"`
}

// ValidateCart ensures the snapshot holds something to buy and every line respects
// stock, the per-item cap and the order ceiling.
func ValidateCart(snap cartpolicy.Snapshot) error {
	if snap.Len() == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	violations := snap.Violations()
	if len(violations) == 0 {
		return nil
	}
	details := make([]ViolationDetail, 0, len(violations))
	for _, v := range violations {
		detail := ViolationDetail{ProductID: v.LineID, Reason: v.Reason}
		if line, _, ok := snap.Find(v.LineID); ok {
			detail.Name = line.Name
			detail.Quantity = line.Quantity
			detail.Stock = line.StockAvailable
		}
		details = append(details, detail)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cart has %d item(s) that cannot be ordered", len(details))).WithDetails(map[string]any{
		"violations": details,
	})
}
