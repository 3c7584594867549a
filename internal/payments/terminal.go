package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/internal/basket"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/logger"
)

// cancelGraceDelay is how long a terminal-transaction cancellation waits
// before being issued. The delay keeps a cancellation from racing ahead of
// the transaction's own creation on the payment provider's system. It is a
// required fixed delay, not a tunable.
const cancelGraceDelay = 5 * time.Second

// TenderResult is the terminal's verdict on one payment attempt.
type TenderResult string

const (
	TenderApproved TenderResult = "approved"
	TenderDeclined TenderResult = "declined"
	TenderErrored  TenderResult = "error"
)

// TenderEvent is one payment attempt reported by the terminal driver.
type TenderEvent struct {
	Result TenderResult
	Card   basket.CardInfo
	Amount decimal.Decimal
	Reason string
}

// Driver is the payment-terminal hardware boundary. Implementations wrap a
// vendor SDK; the core only consumes this contract.
type Driver interface {
	AcceptPayment(ctx context.Context, amount decimal.Decimal) (TenderEvent, error)
	AcceptSignature(ctx context.Context) error
	DeclineSignature(ctx context.Context) error
	CancelServerTransaction(ctx context.Context, orderNo string) error
}

// Terminal drives an embedded payment terminal and feeds its tender results
// into the ledger.
type Terminal struct {
	driver Driver
	ledger *Ledger
	logg   *logger.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTerminal(driver Driver, ledger *Ledger, logg *logger.Logger) (*Terminal, error) {
	if driver == nil {
		return nil, fmt.Errorf("terminal driver required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("payment ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Terminal{
		driver: driver,
		ledger: ledger,
		logg:   logg,
		sleep:  sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Collect runs one terminal payment for the current balance due and records
// the approved tender on the ledger. Declines surface as typed errors with a
// retry left to the associate, never retried automatically.
func (t *Terminal) Collect(ctx context.Context) (Outcome, error) {
	balance := t.ledger.BalanceDue()
	event, err := t.driver.AcceptPayment(ctx, balance)
	if err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment terminal unavailable")
	}

	switch event.Result {
	case TenderApproved:
		return t.ledger.CollectCreditCard(ctx, event.Card, event.Amount)
	case TenderDeclined:
		return Outcome{}, pkgerrors.New(pkgerrors.CodePaymentDeclined, declineMessage(event))
	default:
		return Outcome{}, pkgerrors.New(pkgerrors.CodeDependency, declineMessage(event))
	}
}

func declineMessage(event TenderEvent) string {
	if event.Reason != "" {
		return event.Reason
	}
	return "terminal reported " + string(event.Result)
}

// CancelAfterAbandon cancels the terminal-side transaction for an abandoned
// order after the fixed grace delay has elapsed.
func (t *Terminal) CancelAfterAbandon(ctx context.Context, orderNo string) error {
	if orderNo == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "no order transaction to cancel")
	}
	if err := t.sleep(ctx, cancelGraceDelay); err != nil {
		return err
	}
	if err := t.driver.CancelServerTransaction(ctx, orderNo); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "canceling terminal transaction")
	}
	t.logg.Info(ctx, "terminal transaction canceled")
	return nil
}
