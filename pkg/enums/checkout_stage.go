package enums

import "fmt"

// CheckoutStage is one client-observable state in the basket checkout workflow.
type CheckoutStage string

const (
	StageCart              CheckoutStage = "cart"
	StageShippingAddress   CheckoutStage = "shipping_address"
	StageAskBillingAddress CheckoutStage = "ask_billing_address"
	StageBillingAddress    CheckoutStage = "billing_address"
	StageShippingMethod    CheckoutStage = "shipping_method"
	StagePayThroughWeb     CheckoutStage = "pay_through_web"
	StagePayments          CheckoutStage = "payments"
	StageConfirmation      CheckoutStage = "confirmation"
)

var validCheckoutStages = []CheckoutStage{
	StageCart,
	StageShippingAddress,
	StageAskBillingAddress,
	StageBillingAddress,
	StageShippingMethod,
	StagePayThroughWeb,
	StagePayments,
	StageConfirmation,
}

// String implements fmt.Stringer.
func (s CheckoutStage) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutStage.
func (s CheckoutStage) IsValid() bool {
	for _, candidate := range validCheckoutStages {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCheckoutStage converts raw input into a CheckoutStage.
func ParseCheckoutStage(value string) (CheckoutStage, error) {
	for _, candidate := range validCheckoutStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout stage %q", value)
}
