package basket

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/pkg/enums"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/notify"
)

// Payment sub-resource calls live on the order, not the basket, and carry
// their own etag mechanism; the conflict-retry wrapper does not apply here.
// Each success merges payment_details, confirmation_status and
// payment_balance back into the basket without disturbing other fields.

// CardInfo identifies one tender as collected from the terminal or keyed in.
type CardInfo struct {
	Kind             enums.TenderKind `json:"kind"`
	MaskedIdentifier string           `json:"masked_identifier"`
	Token            string           `json:"token,omitempty"`
}

// PaymentResult reports the order-level payment state after one call.
type PaymentResult struct {
	InstrumentID       string
	ConfirmationStatus enums.ConfirmationStatus
	PaymentBalance     decimal.Decimal
}

func (c *Client) paymentCall(ctx context.Context, h *Handle, op, path string, body any) (PaymentResult, error) {
	snapshot := h.Snapshot()
	if snapshot.OrderNo == "" {
		return PaymentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "no order to pay; create the order first")
	}

	server, _, err := c.do(ctx, request{method: http.MethodPost, path: path, body: body})
	c.metrics.ObserveAuthorization(op, err)
	if err != nil {
		c.logg.Error(ctx, "payment "+op+" failed", err)
		return PaymentResult{}, err
	}

	h.applyPayment(server)
	c.hub.Publish(notify.TopicPaymentsChanged, map[string]any{"order_no": snapshot.OrderNo})

	merged := h.Snapshot()
	result := PaymentResult{
		ConfirmationStatus: merged.ConfirmationStatus,
		PaymentBalance:     merged.PaymentBalance,
	}
	if n := len(merged.PaymentDetails); n > 0 {
		result.InstrumentID = merged.PaymentDetails[n-1].InstrumentID
	}
	return result, nil
}

func (c *Client) orderPath(h *Handle, suffix string) string {
	return "/orders/" + h.Snapshot().OrderNo + "/" + suffix
}

// ApplyCreditCard records a credit card tender without charging it.
func (c *Client) ApplyCreditCard(ctx context.Context, h *Handle, card CardInfo, amount decimal.Decimal) (PaymentResult, error) {
	card.Kind = enums.TenderCreditCard
	return c.paymentCall(ctx, h, "apply_credit_card", c.orderPath(h, "payment_instruments"), map[string]any{
		"card":            card,
		"amount":          amount,
		"idempotency_key": newIdempotencyKey("apply-cc"),
	})
}

// AuthorizeCreditCard charges a previously applied (or fresh) credit card
// tender for the given amount.
func (c *Client) AuthorizeCreditCard(ctx context.Context, h *Handle, card CardInfo, amount decimal.Decimal) (PaymentResult, error) {
	card.Kind = enums.TenderCreditCard
	return c.paymentCall(ctx, h, "authorize_credit_card", c.orderPath(h, "payment_instruments/authorize"), map[string]any{
		"card":            card,
		"amount":          amount,
		"idempotency_key": newIdempotencyKey("auth-cc"),
	})
}

// ApplyGiftCard records a gift card tender without charging it.
func (c *Client) ApplyGiftCard(ctx context.Context, h *Handle, card CardInfo, amount decimal.Decimal) (PaymentResult, error) {
	card.Kind = enums.TenderGiftCard
	return c.paymentCall(ctx, h, "apply_gift_card", c.orderPath(h, "payment_instruments"), map[string]any{
		"card":            card,
		"amount":          amount,
		"idempotency_key": newIdempotencyKey("apply-gc"),
	})
}

// AuthorizeGiftCard charges a gift card tender for the given amount.
func (c *Client) AuthorizeGiftCard(ctx context.Context, h *Handle, card CardInfo, amount decimal.Decimal) (PaymentResult, error) {
	card.Kind = enums.TenderGiftCard
	return c.paymentCall(ctx, h, "authorize_gift_card", c.orderPath(h, "payment_instruments/authorize"), map[string]any{
		"card":            card,
		"amount":          amount,
		"idempotency_key": newIdempotencyKey("auth-gc"),
	})
}

// AuthorizePayment finalizes every applied tender at once (authorize-at-end
// flow).
func (c *Client) AuthorizePayment(ctx context.Context, h *Handle) (PaymentResult, error) {
	return c.paymentCall(ctx, h, "authorize_payment", c.orderPath(h, "authorize"), map[string]any{
		"idempotency_key": newIdempotencyKey("auth-all"),
	})
}

// GiftCardBalance checks the value available on a physical gift card.
func (c *Client) GiftCardBalance(ctx context.Context, card CardInfo) (decimal.Decimal, error) {
	server, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/gift_cards/balance",
		body:   map[string]string{"masked_identifier": card.MaskedIdentifier, "token": card.Token},
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	// The balance endpoint reuses the basket envelope's payment_balance slot.
	return server.PaymentBalance, nil
}

func newIdempotencyKey(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
