package storeapi

import (
	"github.com/shopspring/decimal"
)

// CartLine is one row returned by the cart and build-cart endpoints.
type CartLine struct {
	CartID          string          `json:"cartId"`
	ProductID       string          `json:"productId"`
	Name            string          `json:"name"`
	Image           string          `json:"image,omitempty"`
	ComponentType   string          `json:"componentType,omitempty"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent int             `json:"discountPercent"`
	StockAvailable  int             `json:"stockAvailable"`
	Quantity        int             `json:"quantity"`
}

// User is the profile returned by GET /api/auth.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"`
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Product is a catalog entry as returned by search.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discountPercent"`
	Stock           int             `json:"stock"`
	Images          []string        `json:"images,omitempty"`
	ComponentType   string          `json:"componentType,omitempty"`
	CategoryID      string          `json:"categoryId,omitempty"`
}

// PaymentResult is what POST /api/payments returns: an order id for cash on
// delivery, a gateway URL for online payments.
type PaymentResult struct {
	OrderID     string `json:"orderId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

type quantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type buildComponentRequest struct {
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	ComponentType string `json:"componentType"`
}

type deleteCartRequest struct {
	CartID string `json:"cartId"`
}

type deleteBuildRequest struct {
	ProductID string `json:"productId"`
}

type paymentRequest struct {
	TypePayment string `json:"typePayment"`
}
