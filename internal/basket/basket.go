package basket

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/pkg/enums"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// SentinelID resolves server-side to "the current session's basket" while no
// persisted basket id is known yet.
const SentinelID = "this"

// Basket is the client-side view of one server basket. The server is the
// sole source of truth for every monetary total; the client computes only
// the payment balance due.
type Basket struct {
	BasketID string         `json:"basket_id,omitempty"`
	Currency enums.Currency `json:"currency,omitempty"`
	OrderNo  string         `json:"order_no,omitempty"`

	ProductSubTotal decimal.Decimal `json:"product_sub_total"`
	ProductTotal    decimal.Decimal `json:"product_total"`
	ShippingTotal   decimal.Decimal `json:"shipping_total"`
	TaxTotal        decimal.Decimal `json:"tax_total"`
	OrderTotal      decimal.Decimal `json:"order_total"`

	ProductItems          []ProductItem             `json:"product_items,omitempty"`
	Shipments             []Shipment                `json:"shipments,omitempty"`
	CouponItems           []CouponItem              `json:"coupon_items,omitempty"`
	OrderPriceAdjustments []PriceAdjustment         `json:"order_price_adjustments,omitempty"`
	BillingAddress        *types.Address            `json:"billing_address,omitempty"`
	CustomerInfo          *types.CustomerInfo       `json:"customer_info,omitempty"`
	PaymentDetails        []PaymentInstrumentRecord `json:"payment_details,omitempty"`

	ConfirmationStatus enums.ConfirmationStatus `json:"confirmation_status,omitempty"`
	PaymentBalance     decimal.Decimal          `json:"payment_balance"`

	// Extension is the opaque per-basket extension blob. It is decoded into
	// first-class fields at the wire boundary and never handed further in.
	Extension json.RawMessage `json:"c_result,omitempty"`

	// Fault carries the server fault payload when a basket-shaped snapshot
	// wraps a failed operation (order creation).
	Fault *Fault `json:"fault,omitempty"`

	// Derived fields unpacked from Extension.
	ShippingTotalExclDiscount decimal.Decimal  `json:"-"`
	PriceOverridesApplied     bool             `json:"-"`
	PromotionHints            []string         `json:"-"`
	AvailableShippingMethods  []ShippingMethod `json:"-"`

	// Workflow state is client-only. It is never sent to the server and the
	// server never returns it; Merge carries it across every replace.
	Workflow WorkflowState `json:"-"`
}

// WorkflowState is the explicit list of client-only fields that survive a
// wholesale basket replace.
type WorkflowState struct {
	CheckoutStatus       enums.CheckoutStage `json:"checkout_status"`
	LastCheckoutStatus   enums.CheckoutStage `json:"last_checkout_status"`
	ShipToStore          bool                `json:"ship_to_store"`
	DifferentStorePickup bool                `json:"different_store_pickup"`
	EnableCheckout       bool                `json:"enable_checkout"`
}

// NewBasket returns an empty unpersisted basket at the cart stage.
func NewBasket() *Basket {
	return &Basket{
		Workflow: WorkflowState{
			CheckoutStatus:     enums.StageCart,
			LastCheckoutStatus: enums.StageCart,
			EnableCheckout:     true,
		},
	}
}

// ProductItem is one product line item.
type ProductItem struct {
	ItemID      string          `json:"item_id,omitempty"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Price       decimal.Decimal `json:"price"`

	PriceOverrideType  string          `json:"price_override_type,omitempty"`
	PriceOverrideValue decimal.Decimal `json:"price_override_value,omitempty"`
	ManagerEmployeeID  string          `json:"manager_employee_id,omitempty"`
	BasePriceOverride  decimal.Decimal `json:"base_price_override,omitempty"`

	OptionItems []OptionSelection `json:"option_items,omitempty"`
}

// HasPriceOverride reports whether an associate override is applied.
func (p ProductItem) HasPriceOverride() bool {
	return p.PriceOverrideType != ""
}

// StripOverrides returns a copy without any associate override fields, for
// rebuilding a clean basket after an order abandon.
func (p ProductItem) StripOverrides() ProductItem {
	clean := p
	clean.ItemID = ""
	clean.PriceOverrideType = ""
	clean.PriceOverrideValue = decimal.Decimal{}
	clean.ManagerEmployeeID = ""
	clean.BasePriceOverride = decimal.Decimal{}
	return clean
}

// OptionSelection is one configured product option.
type OptionSelection struct {
	OptionID      string `json:"option_id"`
	OptionValueID string `json:"option_value_id"`
}

// Shipment groups items under one shipping address and method.
type Shipment struct {
	ShipmentID      string          `json:"shipment_id,omitempty"`
	ShippingAddress *types.Address  `json:"shipping_address,omitempty"`
	ShippingMethod  *ShippingMethod `json:"shipping_method,omitempty"`
	GiftMessage     string          `json:"gift_message,omitempty"`

	ShippingPriceOverride *PriceOverride `json:"shipping_price_override,omitempty"`
}

// ShippingMethod is one selectable fulfillment option.
type ShippingMethod struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// PriceOverride is an associate-authorized manual price change.
type PriceOverride struct {
	Type              string          `json:"type"`
	Value             decimal.Decimal `json:"value"`
	ManagerEmployeeID string          `json:"manager_employee_id,omitempty"`
	Reason            string          `json:"reason,omitempty"`
}

// CouponItem is one coupon applied (or attempted) on the basket.
type CouponItem struct {
	CouponItemID string             `json:"coupon_item_id,omitempty"`
	Code         string             `json:"code"`
	Valid        bool               `json:"valid"`
	Status       enums.CouponStatus `json:"status_code,omitempty"`
}

// PriceAdjustment is an order-level promotion adjustment.
type PriceAdjustment struct {
	AdjustmentID string          `json:"price_adjustment_id,omitempty"`
	PromotionID  string          `json:"promotion_id,omitempty"`
	ItemText     string          `json:"item_text,omitempty"`
	Price        decimal.Decimal `json:"price"`
}

// PaymentInstrumentRecord is one tender applied toward the order total.
type PaymentInstrumentRecord struct {
	InstrumentID     string             `json:"payment_instrument_id,omitempty"`
	Kind             enums.TenderKind   `json:"kind"`
	MaskedIdentifier string             `json:"masked_identifier,omitempty"`
	AmountAuthorized decimal.Decimal    `json:"amount_auth"`
	Status           enums.TenderStatus `json:"status"`
}

// HasCoupon reports whether a coupon with the given code is already present.
// Duplicate detection is local; no server round trip is needed.
func (b *Basket) HasCoupon(code string) bool {
	for _, item := range b.CouponItems {
		if item.Code == code {
			return true
		}
	}
	return false
}

// FirstShipment returns the basket's first shipment, if any.
func (b *Basket) FirstShipment() *Shipment {
	if len(b.Shipments) == 0 {
		return nil
	}
	return &b.Shipments[0]
}

// ShippingPriceOverride returns the override on the first shipment, if set.
func (b *Basket) ShippingPriceOverride() *PriceOverride {
	if s := b.FirstShipment(); s != nil {
		return s.ShippingPriceOverride
	}
	return nil
}

// GiftMessage returns the gift message on the first shipment.
func (b *Basket) GiftMessage() string {
	if s := b.FirstShipment(); s != nil {
		return s.GiftMessage
	}
	return ""
}

// Merge replaces the local state wholesale with a server representation while
// preserving the workflow restore list, then unpacks the extension blob.
func (b *Basket) Merge(server *Basket) {
	if server == nil {
		return
	}
	workflow := b.Workflow
	*b = *server
	b.Workflow = workflow
	b.applyExtension()
}

// MergePayment folds payment fields of a sub-resource response back into the
// basket without disturbing anything else.
func (b *Basket) MergePayment(server *Basket) {
	if server == nil {
		return
	}
	b.PaymentDetails = server.PaymentDetails
	b.ConfirmationStatus = server.ConfirmationStatus
	b.PaymentBalance = server.PaymentBalance
	if server.OrderNo != "" {
		b.OrderNo = server.OrderNo
	}
}

// extensionResult is the closed set of derived values the server tucks into
// the extension blob. Parsing happens once here; the raw blob goes no further.
type extensionResult struct {
	EnableCheckout            *bool            `json:"enable_checkout,omitempty"`
	ShippingTotalExclDiscount *decimal.Decimal `json:"shipping_total_excl_discount,omitempty"`
	PriceOverridesApplied     *bool            `json:"price_overrides_applied,omitempty"`
	CouponSummaries           []CouponItem     `json:"coupon_summaries,omitempty"`
	PromotionHints            []string         `json:"promotion_hints,omitempty"`
	ShippingMethods           []ShippingMethod `json:"applicable_shipping_methods,omitempty"`
}

func (b *Basket) applyExtension() {
	if len(b.Extension) == 0 {
		return
	}
	var result extensionResult
	if err := json.Unmarshal(b.Extension, &result); err != nil {
		// A malformed blob never poisons the basket; derived fields stay zero.
		b.Extension = nil
		return
	}
	if result.EnableCheckout != nil {
		b.Workflow.EnableCheckout = *result.EnableCheckout
	}
	if result.ShippingTotalExclDiscount != nil {
		b.ShippingTotalExclDiscount = *result.ShippingTotalExclDiscount
	}
	if result.PriceOverridesApplied != nil {
		b.PriceOverridesApplied = *result.PriceOverridesApplied
	}
	if len(result.CouponSummaries) > 0 {
		b.CouponItems = result.CouponSummaries
	}
	if len(result.PromotionHints) > 0 {
		b.PromotionHints = result.PromotionHints
	}
	if len(result.ShippingMethods) > 0 {
		b.AvailableShippingMethods = result.ShippingMethods
	}
	b.Extension = nil
}
