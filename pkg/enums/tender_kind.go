package enums

import "fmt"

// TenderKind identifies the payment instrument type applied to an order.
type TenderKind string

const (
	TenderCreditCard TenderKind = "credit_card"
	TenderGiftCard   TenderKind = "gift_card"
)

var validTenderKinds = []TenderKind{
	TenderCreditCard,
	TenderGiftCard,
}

// String implements fmt.Stringer.
func (k TenderKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TenderKind.
func (k TenderKind) IsValid() bool {
	for _, candidate := range validTenderKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTenderKind converts raw input into a TenderKind.
func ParseTenderKind(value string) (TenderKind, error) {
	for _, candidate := range validTenderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tender kind %q", value)
}
