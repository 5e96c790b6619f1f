package enums

import (
	"fmt"
	"strings"
)

// PaymentType is the settlement option sent to the payments endpoint at checkout.
type PaymentType string

const (
	PaymentTypeCOD   PaymentType = "COD"
	PaymentTypeMoMo  PaymentType = "MOMO"
	PaymentTypeVNPay PaymentType = "VNPAY"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeCOD,
	PaymentTypeMoMo,
	PaymentTypeVNPay,
}

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentType.
func (p PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresRedirect reports whether checkout hands the buyer over to a gateway page.
func (p PaymentType) RequiresRedirect() bool {
	return p == PaymentTypeMoMo || p == PaymentTypeVNPay
}

// ParsePaymentType converts raw input into a PaymentType. Matching ignores case.
func ParsePaymentType(value string) (PaymentType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
