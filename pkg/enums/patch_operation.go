package enums

import "fmt"

// PatchOperation names a server-side procedure embedded in a basket PATCH.
type PatchOperation string

const (
	PatchBasketReplace           PatchOperation = "basket_replace"
	PatchProductPriceOverride    PatchOperation = "product_price_override"
	PatchShippingPriceOverride   PatchOperation = "shipping_price_override"
	PatchValidateCartForCheckout PatchOperation = "validate_cart_for_checkout"
	PatchShippingMethodList      PatchOperation = "get_shipping_method_list"
	PatchAfterAbandonOrder       PatchOperation = "after_abandon_order"
)

var validPatchOperations = []PatchOperation{
	PatchBasketReplace,
	PatchProductPriceOverride,
	PatchShippingPriceOverride,
	PatchValidateCartForCheckout,
	PatchShippingMethodList,
	PatchAfterAbandonOrder,
}

// String implements fmt.Stringer.
func (p PatchOperation) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PatchOperation.
func (p PatchOperation) IsValid() bool {
	for _, candidate := range validPatchOperations {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePatchOperation converts raw input into a PatchOperation.
func ParsePatchOperation(value string) (PatchOperation, error) {
	for _, candidate := range validPatchOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid patch operation %q", value)
}
