package storeapi

import (
	"context"
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

const pathPayments = "/api/payments"

// CreatePayment places the order for the current cart.
// The metadata is either a bare string, a URL for gateway payments or an order id
// for cash on delivery, or an object carrying one of those fields.
func (c *Client) CreatePayment(ctx context.Context, typePayment string) (PaymentResult, error) {
	if strings.TrimSpace(typePayment) == "" {
		return PaymentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "typePayment is required")
	}

	var raw json.RawMessage
	if err := c.post(ctx, pathPayments, paymentRequest{TypePayment: typePayment}, &raw); err != nil {
		return PaymentResult{}, err
	}
	return parsePaymentMetadata(raw)
}

func parsePaymentMetadata(raw json.RawMessage) (PaymentResult, error) {
	if len(raw) == 0 {
		return PaymentResult{}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		if isURL(text) {
			return PaymentResult{RedirectURL: text}, nil
		}
		return PaymentResult{OrderID: text}, nil
	}

	var obj struct {
		OrderID     string `json:"orderId"`
		ID          string `json:"_id"`
		RedirectURL string `json:"redirectUrl"`
		PayURL      string `json:"payUrl"`
		URL         string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return PaymentResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment response")
	}
	result := PaymentResult{OrderID: firstNonEmpty(obj.OrderID, obj.ID)}
	result.RedirectURL = firstNonEmpty(obj.RedirectURL, obj.PayURL, obj.URL)
	return result, nil
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
