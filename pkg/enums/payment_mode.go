package enums

import "fmt"

// PaymentMode records how an entry was settled.
type PaymentMode string

const (
	PaymentModeCash       PaymentMode = "cash"
	PaymentModeOnline     PaymentMode = "online"
	PaymentModeCreditCard PaymentMode = "credit_card"
)

var validPaymentModes = []PaymentMode{PaymentModeCash, PaymentModeOnline, PaymentModeCreditCard}

// String implements fmt.Stringer.
func (p PaymentMode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMode.
func (p PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == p {
			return true
		}
	}
	return false
}

// Label returns the display label used in activity trails.
func (p PaymentMode) Label() string {
	switch p {
	case PaymentModeCash:
		return "Cash"
	case PaymentModeOnline:
		return "Online"
	default:
		return "Credit Card"
	}
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
