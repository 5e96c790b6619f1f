package cartsync

import (
	"strings"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

// FromBackend converts cart rows from the backend into policy lines.
func FromBackend(rows []storeapi.CartLine) []cartpolicy.Line {
	out := make([]cartpolicy.Line, 0, len(rows))
	for _, row := range rows {
		out = append(out, cartpolicy.Line{
			CartID:          row.CartID,
			ProductID:       row.ProductID,
			Name:            row.Name,
			Image:           row.Image,
			ComponentType:   componentType(row.ComponentType),
			UnitPrice:       row.UnitPrice,
			DiscountPercent: row.DiscountPercent,
			StockAvailable:  max(row.StockAvailable, 0),
			Quantity:        row.Quantity,
		})
	}
	return out
}

// Candidate is the line a catalog product would become once added.
func Candidate(p storeapi.Product) cartpolicy.Line {
	var image string
	if len(p.Images) > 0 {
		image = p.Images[0]
	}
	return cartpolicy.Line{
		ProductID:       p.ID,
		Name:            p.Name,
		Image:           image,
		ComponentType:   componentType(p.ComponentType),
		UnitPrice:       p.Price,
		DiscountPercent: p.DiscountPercent,
		StockAvailable:  max(p.Stock, 0),
	}
}

func componentType(raw string) enums.ComponentType {
	if raw == "" {
		return ""
	}
	if parsed, err := enums.ParseComponentType(raw); err == nil {
		return parsed
	}
	return enums.ComponentType(strings.ToLower(strings.TrimSpace(raw)))
}
