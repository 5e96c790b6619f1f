package storeapi

import (
	"context"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

const (
	pathCurrentUser = "/api/auth"
	pathCategories  = "/api/get-categories"
	pathSearch      = "/api/search"
)

// CurrentUser returns the profile behind the access token.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := c.get(ctx, pathCurrentUser, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.get(ctx, pathCategories, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// SearchProducts runs a keyword search over the catalog.
func (c *Client) SearchProducts(ctx context.Context, keyword string) ([]Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "keyword is required")
	}
	var products []Product
	if err := c.get(ctx, pathSearch+"?keyword="+url.QueryEscape(keyword), &products); err != nil {
		return nil, err
	}
	return products, nil
}
