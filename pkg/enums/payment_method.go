package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a customer settles a sale at the till.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodMobileMoney,
}

// mpesa is what older back-office builds store for mobile money.
var paymentMethodAliases = map[string]PaymentMethod{
	"mpesa":  PaymentMethodMobileMoney,
	"m-pesa": PaymentMethodMobileMoney,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// Label is the receipt-facing name of the method.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentMethodCash:
		return "Cash"
	case PaymentMethodCard:
		return "Card"
	case PaymentMethodMobileMoney:
		return "Mobile Money"
	}
	return string(p)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := paymentMethodAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// PaymentMethods returns the accepted methods in display order.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(validPaymentMethods))
	copy(out, validPaymentMethods)
	return out
}
