package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/enums"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/notify"
)

// balanceEpsilon is the settlement tolerance in currency units. It is a hard
// invariant of the remote order system, not a tunable.
var balanceEpsilon = decimal.New(1, -3)

// Commerce is the slice of the basket client the ledger drives.
type Commerce interface {
	ApplyCreditCard(ctx context.Context, h *basket.Handle, card basket.CardInfo, amount decimal.Decimal) (basket.PaymentResult, error)
	AuthorizeCreditCard(ctx context.Context, h *basket.Handle, card basket.CardInfo, amount decimal.Decimal) (basket.PaymentResult, error)
	ApplyGiftCard(ctx context.Context, h *basket.Handle, card basket.CardInfo, amount decimal.Decimal) (basket.PaymentResult, error)
	AuthorizeGiftCard(ctx context.Context, h *basket.Handle, card basket.CardInfo, amount decimal.Decimal) (basket.PaymentResult, error)
	AuthorizePayment(ctx context.Context, h *basket.Handle) (basket.PaymentResult, error)
	GiftCardBalance(ctx context.Context, card basket.CardInfo) (decimal.Decimal, error)
}

// Params collects the collaborators of a payment ledger.
type Params struct {
	Config   config.CheckoutConfig
	Commerce Commerce
	Handle   *basket.Handle
	Logger   *logger.Logger
	Hub      *notify.Hub
}

// Ledger tracks tender application against the order total and knows when
// the order is fully paid. Authorization timing is configuration, selected
// up front, never detected dynamically.
type Ledger struct {
	cfg      config.CheckoutConfig
	commerce Commerce
	handle   *basket.Handle
	logg     *logger.Logger
	hub      *notify.Hub
}

func NewLedger(params Params) (*Ledger, error) {
	if params.Commerce == nil {
		return nil, fmt.Errorf("commerce client required")
	}
	if params.Handle == nil {
		return nil, fmt.Errorf("basket handle required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	hub := params.Hub
	if hub == nil {
		hub = notify.NewHub()
	}
	return &Ledger{
		cfg:      params.Config,
		commerce: params.Commerce,
		handle:   params.Handle,
		logg:     params.Logger,
		hub:      hub,
	}, nil
}

// BalanceDue is the only monetary value computed client-side: the order total
// minus every non-declined tender's authorized amount.
func (l *Ledger) BalanceDue() decimal.Decimal {
	snapshot := l.handle.Snapshot()
	authorized := decimal.Zero
	for _, detail := range snapshot.PaymentDetails {
		if detail.Status == enums.TenderDeclined {
			continue
		}
		authorized = authorized.Add(detail.AmountAuthorized)
	}
	return snapshot.OrderTotal.Sub(authorized)
}

// Settled reports whether the balance due is within the settlement tolerance
// of zero.
func (l *Ledger) Settled() bool {
	return withinEpsilon(l.BalanceDue())
}

func withinEpsilon(balance decimal.Decimal) bool {
	return balance.Abs().LessThan(balanceEpsilon)
}

// Outcome is the ledger's verdict after one tender lands.
type Outcome struct {
	InstrumentID string
	Confirmed    bool
	BalanceDue   decimal.Decimal
}

// CollectCreditCard takes one credit card tender. Under authorize-at-end the
// tender is recorded and the final authorization fires automatically once the
// balance is covered; under authorize-as-you-go it is charged immediately.
func (l *Ledger) CollectCreditCard(ctx context.Context, card basket.CardInfo, requested decimal.Decimal) (Outcome, error) {
	amount, err := l.capAmount(requested, decimal.Decimal{})
	if err != nil {
		return Outcome{}, err
	}
	if l.cfg.AuthorizeMode == config.AuthorizeAtEnd {
		if _, err := l.commerce.ApplyCreditCard(ctx, l.handle, card, amount); err != nil {
			return Outcome{}, err
		}
		return l.maybeFinalize(ctx)
	}
	result, err := l.commerce.AuthorizeCreditCard(ctx, l.handle, card, amount)
	if err != nil {
		return Outcome{}, err
	}
	return l.verdict(ctx, result)
}

// CollectGiftCard takes one gift card tender. A balance check against the
// physical card runs first; the amount actually tendered never exceeds what
// the card holds.
func (l *Ledger) CollectGiftCard(ctx context.Context, card basket.CardInfo, requested decimal.Decimal) (Outcome, error) {
	available, err := l.commerce.GiftCardBalance(ctx, card)
	if err != nil {
		return Outcome{}, err
	}
	if available.LessThanOrEqual(decimal.Zero) {
		return Outcome{}, pkgerrors.New(pkgerrors.CodePaymentDeclined, "gift card has no available balance")
	}
	amount, err := l.capAmount(requested, available)
	if err != nil {
		return Outcome{}, err
	}
	if l.cfg.AuthorizeMode == config.AuthorizeAtEnd {
		if _, err := l.commerce.ApplyGiftCard(ctx, l.handle, card, amount); err != nil {
			return Outcome{}, err
		}
		return l.maybeFinalize(ctx)
	}
	result, err := l.commerce.AuthorizeGiftCard(ctx, l.handle, card, amount)
	if err != nil {
		return Outcome{}, err
	}
	return l.verdict(ctx, result)
}

// capAmount resolves the amount to tender. Single-tender sessions always
// charge the full balance due; multi-tender entry caps the entered amount at
// the lesser of the balance due and, when set, the instrument's available
// value.
func (l *Ledger) capAmount(requested, available decimal.Decimal) (decimal.Decimal, error) {
	balance := l.BalanceDue()
	if withinEpsilon(balance) || balance.IsNegative() {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "no balance remains to tender")
	}

	amount := balance
	if l.cfg.MultiTender && requested.GreaterThan(decimal.Zero) && requested.LessThan(amount) {
		amount = requested
	}
	if available.GreaterThan(decimal.Zero) && available.LessThan(amount) {
		amount = available
	}
	return amount, nil
}

// maybeFinalize fires the single end-of-checkout authorization once every
// applied tender together covers the order total.
func (l *Ledger) maybeFinalize(ctx context.Context) (Outcome, error) {
	if !l.Settled() {
		return l.pending(), nil
	}
	result, err := l.commerce.AuthorizePayment(ctx, l.handle)
	if err != nil {
		return Outcome{}, err
	}
	return l.verdict(ctx, result)
}

// verdict interprets a server payment result. Completion requires an explicit
// confirmation: a zero balance on its own is an inconsistent state the
// associate has to investigate, never a success.
func (l *Ledger) verdict(ctx context.Context, result basket.PaymentResult) (Outcome, error) {
	if result.ConfirmationStatus == enums.ConfirmationConfirmed {
		return Outcome{
			InstrumentID: result.InstrumentID,
			Confirmed:    true,
			BalanceDue:   result.PaymentBalance,
		}, nil
	}
	if withinEpsilon(result.PaymentBalance) {
		l.logg.Warn(ctx, "payment balance reached zero without order confirmation")
		return Outcome{}, pkgerrors.New(pkgerrors.CodeConfirmationMismatch,
			"payment balance is zero but the order is not confirmed")
	}
	return Outcome{
		InstrumentID: result.InstrumentID,
		BalanceDue:   result.PaymentBalance,
	}, nil
}

func (l *Ledger) pending() Outcome {
	return Outcome{BalanceDue: l.BalanceDue()}
}
