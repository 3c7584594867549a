package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/api/responses"
	"github.com/harborlane/clienteling-core/api/validators"
	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/internal/payments"
	"github.com/harborlane/clienteling-core/pkg/enums"
	"github.com/harborlane/clienteling-core/pkg/logger"
)

// LedgerService is the tender-collection surface the payment endpoints use.
type LedgerService interface {
	BalanceDue() decimal.Decimal
	Settled() bool
	CollectCreditCard(ctx context.Context, card basket.CardInfo, requested decimal.Decimal) (payments.Outcome, error)
	CollectGiftCard(ctx context.Context, card basket.CardInfo, requested decimal.Decimal) (payments.Outcome, error)
}

// GiftCardChecker looks up the remaining balance on a gift card before it is
// offered as tender.
type GiftCardChecker interface {
	GiftCardBalance(ctx context.Context, card basket.CardInfo) (decimal.Decimal, error)
}

type balanceView struct {
	BalanceDue decimal.Decimal `json:"balance_due"`
	Settled    bool            `json:"settled"`
}

type outcomeView struct {
	InstrumentID string          `json:"instrument_id,omitempty"`
	Confirmed    bool            `json:"confirmed"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
}

func PaymentBalance(svc LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, balanceView{
			BalanceDue: svc.BalanceDue(),
			Settled:    svc.Settled(),
		})
	}
}

type tenderRequest struct {
	Kind             string          `json:"kind" validate:"required,oneof=credit_card gift_card"`
	MaskedIdentifier string          `json:"masked_identifier" validate:"required"`
	Token            string          `json:"token,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
}

func (t tenderRequest) card() basket.CardInfo {
	kind, _ := enums.ParseTenderKind(t.Kind)
	return basket.CardInfo{
		Kind:             kind,
		MaskedIdentifier: t.MaskedIdentifier,
		Token:            t.Token,
	}
}

func TenderCollect(svc LedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload tenderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		collect := svc.CollectCreditCard
		if payload.Kind == enums.TenderGiftCard.String() {
			collect = svc.CollectGiftCard
		}
		outcome, err := collect(r.Context(), payload.card(), payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcomeView{
			InstrumentID: outcome.InstrumentID,
			Confirmed:    outcome.Confirmed,
			BalanceDue:   outcome.BalanceDue,
		})
	}
}

type giftCardBalanceRequest struct {
	CardNumber string `json:"card_number" validate:"required"`
	Token      string `json:"token,omitempty"`
}

func GiftCardBalanceCheck(svc GiftCardChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload giftCardBalanceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		card := basket.CardInfo{
			Kind:             enums.TenderGiftCard,
			MaskedIdentifier: payload.CardNumber,
			Token:            payload.Token,
		}
		balance, err := svc.GiftCardBalance(r.Context(), card)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]decimal.Decimal{"balance": balance})
	}
}
