package basket

import (
	"encoding/json"
	"fmt"

	"github.com/harborlane/clienteling-core/pkg/enums"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// Instruction is one named server-side operation embedded in an otherwise
// ordinary basket PATCH. The set is closed; exactly one instruction rides on
// a request, and the response supersedes the entire basket representation.
type Instruction interface {
	Operation() enums.PatchOperation
	instructionData() any
}

// ReplaceInstruction wholesale-replaces the basket contents server-side.
type ReplaceInstruction struct {
	ProductItems   []ProductItem       `json:"product_items,omitempty"`
	CouponItems    []CouponItem        `json:"coupon_items,omitempty"`
	BillingAddress *types.Address      `json:"billing_address,omitempty"`
	CustomerInfo   *types.CustomerInfo `json:"customer_info,omitempty"`
}

func (ReplaceInstruction) Operation() enums.PatchOperation { return enums.PatchBasketReplace }
func (i ReplaceInstruction) instructionData() any          { return i }

// PriceOverrideInstruction applies an associate-authorized price override to
// a single product line item.
type PriceOverrideInstruction struct {
	ItemID   string        `json:"item_id"`
	Override PriceOverride `json:"override"`
}

func (PriceOverrideInstruction) Operation() enums.PatchOperation {
	return enums.PatchProductPriceOverride
}
func (i PriceOverrideInstruction) instructionData() any { return i }

// ShippingOverrideInstruction rides on a set-shipping-method PUT to apply a
// shipping price override in the same round trip.
type ShippingOverrideInstruction struct {
	Override PriceOverride `json:"override"`
}

func (ShippingOverrideInstruction) Operation() enums.PatchOperation {
	return enums.PatchShippingPriceOverride
}
func (i ShippingOverrideInstruction) instructionData() any { return i }

// ValidateCartInstruction asks the server to run its checkout-eligibility
// rules; the result lands in the extension blob as enable_checkout.
type ValidateCartInstruction struct{}

func (ValidateCartInstruction) Operation() enums.PatchOperation {
	return enums.PatchValidateCartForCheckout
}
func (i ValidateCartInstruction) instructionData() any { return i }

// ShippingMethodListInstruction asks the server to enumerate the shipping
// methods applicable to the basket's current shipment.
type ShippingMethodListInstruction struct{}

func (ShippingMethodListInstruction) Operation() enums.PatchOperation {
	return enums.PatchShippingMethodList
}
func (i ShippingMethodListInstruction) instructionData() any { return i }

// AfterAbandonInstruction restores the client-only conveniences the server
// does not preserve across an order abandon.
type AfterAbandonInstruction struct {
	ShippingOverride *PriceOverride `json:"shipping_override,omitempty"`
	GiftMessage      string         `json:"gift_message,omitempty"`
	Currency         enums.Currency `json:"currency,omitempty"`
}

func (AfterAbandonInstruction) Operation() enums.PatchOperation {
	return enums.PatchAfterAbandonOrder
}
func (i AfterAbandonInstruction) instructionData() any { return i }

type patchEnvelope struct {
	Type enums.PatchOperation `json:"type"`
	Data json.RawMessage      `json:"data"`
}

// EncodeInstruction serializes an instruction into the single opaque string
// field carried alongside the top-level basket fields of a PATCH.
func EncodeInstruction(in Instruction) (string, error) {
	if in == nil {
		return "", fmt.Errorf("nil patch instruction")
	}
	data, err := json.Marshal(in.instructionData())
	if err != nil {
		return "", fmt.Errorf("encoding patch data: %w", err)
	}
	envelope, err := json.Marshal(patchEnvelope{Type: in.Operation(), Data: data})
	if err != nil {
		return "", fmt.Errorf("encoding patch envelope: %w", err)
	}
	return string(envelope), nil
}

// DecodeInstructionType reads back the operation name from an encoded patch
// field. Servers (and tests) use it to dispatch.
func DecodeInstructionType(raw string) (enums.PatchOperation, json.RawMessage, error) {
	var envelope patchEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return "", nil, fmt.Errorf("decoding patch envelope: %w", err)
	}
	if !envelope.Type.IsValid() {
		return "", nil, fmt.Errorf("unknown patch operation %q", envelope.Type)
	}
	return envelope.Type, envelope.Data, nil
}
