package storeapi

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

const (
	pathGetBuild       = "/api/get-cart-build-pc"
	pathAddBuild       = "/api/build-pc-cart"
	pathUpdateBuildQty = "/api/update-quantity-cart-build-pc"
	pathDeleteBuild    = "/api/delete-cart-build-pc"
	pathDeleteBuildAll = "/api/delete-all-cart-build-pc"
)

// GetBuildCart fetches the build-a-PC cart, one line per chosen component.
func (c *Client) GetBuildCart(ctx context.Context) ([]CartLine, error) {
	var lines []CartLine
	if err := c.get(ctx, pathGetBuild, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *Client) AddBuildComponent(ctx context.Context, productID string, quantity int, componentType string) error {
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(componentType) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId and componentType are required")
	}
	return c.post(ctx, pathAddBuild, buildComponentRequest{
		ProductID:     productID,
		Quantity:      quantity,
		ComponentType: componentType,
	}, nil)
}

func (c *Client) UpdateBuildQuantity(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return c.post(ctx, pathUpdateBuildQty, quantityRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (c *Client) DeleteBuildComponent(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return c.post(ctx, pathDeleteBuild, deleteBuildRequest{ProductID: productID}, nil)
}

// ClearBuild empties the build cart.
func (c *Client) ClearBuild(ctx context.Context) error {
	return c.post(ctx, pathDeleteBuildAll, nil, nil)
}
