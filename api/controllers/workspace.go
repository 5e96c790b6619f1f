package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pcstore-storefront/api/middleware"
	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

func currentWorkspace(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*workspace.Workspace, bool) {
	ws := middleware.WorkspaceFromContext(r.Context())
	if ws == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session"))
		return nil, false
	}
	return ws, true
}

// productPayload is the product card the UI was showing when the shopper picked it.
type productPayload struct {
	ID              string          `json:"id" validate:"required,max=64"`
	Name            string          `json:"name" validate:"max=255"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discountPercent" validate:"min=0,max=100"`
	Stock           int             `json:"stock"`
	Images          []string        `json:"images"`
	ComponentType   string          `json:"componentType"`
	CategoryID      string          `json:"categoryId"`
}

func (p productPayload) toProduct() (storeapi.Product, error) {
	if p.Price.IsNegative() {
		return storeapi.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return storeapi.Product{
		ID:              strings.TrimSpace(p.ID),
		Name:            strings.TrimSpace(p.Name),
		Price:           p.Price,
		DiscountPercent: p.DiscountPercent,
		Stock:           p.Stock,
		Images:          p.Images,
		ComponentType:   strings.TrimSpace(p.ComponentType),
		CategoryID:      strings.TrimSpace(p.CategoryID),
	}, nil
}

// quantityOrDefault treats an omitted quantity as one unit.
func quantityOrDefault(q *int) int {
	if q == nil {
		return 1
	}
	return *q
}

// rawQuantity accepts both `3` and `"3"` so the UI can forward what the shopper typed.
func rawQuantity(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}
