package basket

import (
	"context"
	"net/http"

	"go.uber.org/multierr"

	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
)

// AbandonCredentials authorizes the storefront abandon call.
type AbandonCredentials struct {
	EmployeeID       string `json:"employee_id"`
	EmployeePasscode string `json:"employee_passcode"`
	StoreID          string `json:"store_id"`
}

// AbandonOrder cancels the in-progress order and reconstructs a clean basket
// from its salvageable parts. This is a forward compensating operation, not
// a rollback: the server does not preserve client-only conveniences
// (overrides, gift messages) across an abandon, so the chain captures them
// first and restores them onto the fresh basket afterwards. Only after the
// full chain resolves is the abandon complete.
func (c *Client) AbandonOrder(ctx context.Context, h *Handle, creds AbandonCredentials) error {
	snapshot := h.Snapshot()
	if snapshot.OrderNo == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "no order to abandon")
	}

	// Captured before anything is stripped.
	shippingOverride := snapshot.ShippingPriceOverride()
	giftMessage := snapshot.GiftMessage()
	currency := snapshot.Currency
	customerInfo := snapshot.CustomerInfo

	// Storefront-side abandon. Its outcome does not gate the rebuild; a
	// failure is recorded and reported alongside any later hard failure.
	var warnings error
	if _, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/orders/" + snapshot.OrderNo + "/abandon",
		body:   creds,
	}); err != nil {
		c.logg.Warn(ctx, "storefront abandon call failed; rebuilding basket anyway")
		warnings = multierr.Append(warnings, err)
	}

	replace := ReplaceInstruction{
		ProductItems:   make([]ProductItem, 0, len(snapshot.ProductItems)),
		CouponItems:    snapshot.CouponItems,
		BillingAddress: snapshot.BillingAddress,
		CustomerInfo:   customerInfo,
	}
	for _, item := range snapshot.ProductItems {
		replace.ProductItems = append(replace.ProductItems, item.StripOverrides())
	}

	encoded, err := EncodeInstruction(replace)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding abandon replace payload")
	}

	// The abandoned basket is gone; start over and re-request a basket built
	// from the replace payload. The response carries a brand-new etag.
	h.Clear()
	if _, err := c.mutate(ctx, h, "abandon_rebuild", false, func(etag string) (*Basket, string, error) {
		return c.do(ctx, request{
			method: http.MethodPost,
			path:   "/baskets",
			body:   map[string]string{"c_patch": encoded},
			etag:   etag,
		})
	}); err != nil {
		return multierr.Append(warnings, err)
	}

	restore := AfterAbandonInstruction{
		ShippingOverride: shippingOverride,
		GiftMessage:      giftMessage,
		Currency:         currency,
	}
	if _, err := c.Patch(ctx, h, restore, false); err != nil {
		return multierr.Append(warnings, err)
	}

	if customerInfo != nil {
		if _, err := c.SetCustomerInfo(ctx, h, *customerInfo); err != nil {
			return multierr.Append(warnings, err)
		}
	}

	c.publishSync(h)
	return nil
}
