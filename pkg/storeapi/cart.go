package storeapi

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

const (
	pathGetCart        = "/api/get-cart"
	pathUpdateQuantity = "/api/update-quantity"
	pathDeleteCart     = "/api/delete-cart"
	pathAddToCart      = "/api/add-to-cart"
)

// GetCart fetches the authoritative cart.
func (c *Client) GetCart(ctx context.Context) ([]CartLine, error) {
	var lines []CartLine
	if err := c.get(ctx, pathGetCart, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *Client) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return c.post(ctx, pathUpdateQuantity, quantityRequest{ProductID: productID, Quantity: quantity}, nil)
}

// DeleteCartLine removes a cart row by its cart id, not its product id.
func (c *Client) DeleteCartLine(ctx context.Context, cartID string) error {
	if strings.TrimSpace(cartID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cartId is required")
	}
	return c.post(ctx, pathDeleteCart, deleteCartRequest{CartID: cartID}, nil)
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return c.post(ctx, pathAddToCart, quantityRequest{ProductID: productID, Quantity: quantity}, nil)
}
