package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/api/responses"
	"github.com/harborlane/clienteling-core/api/validators"
	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/internal/checkout"
	"github.com/harborlane/clienteling-core/pkg/enums"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// CheckoutService is the slice of the state machine the checkout endpoints
// drive.
type CheckoutService interface {
	Stages() []enums.CheckoutStage
	Current() enums.CheckoutStage
	Previous() enums.CheckoutStage
	BeginCheckout(ctx context.Context) error
	SubmitShippingAddress(ctx context.Context, address types.Address, verify bool) (checkout.BillingPrompt, error)
	ResolveBillingPrompt(ctx context.Context, prompt checkout.BillingPrompt, same bool) error
	SubmitBillingAddress(ctx context.Context, address types.Address, verify bool) error
	SelectShippingMethod(ctx context.Context, method basket.ShippingMethod, override *basket.PriceOverride) error
	PlaceOrder(ctx context.Context) (basket.Basket, error)
	ObserveConfirmation(ctx context.Context) bool
	Abandon(ctx context.Context, creds basket.AbandonCredentials) error
}

type stageView struct {
	Current  string   `json:"current"`
	Previous string   `json:"previous"`
	Sequence []string `json:"sequence"`
}

func newStageView(svc CheckoutService) stageView {
	sequence := svc.Stages()
	names := make([]string, 0, len(sequence))
	for _, stage := range sequence {
		names = append(names, stage.String())
	}
	return stageView{
		Current:  svc.Current().String(),
		Previous: svc.Previous().String(),
		Sequence: names,
	}
}

func StageInspect(svc CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, newStageView(svc))
	}
}

func CheckoutBegin(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.BeginCheckout(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStageView(svc))
	}
}

type addressRequest struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address1    string `json:"address1" validate:"required"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city" validate:"required"`
	StateCode   string `json:"state_code,omitempty"`
	PostalCode  string `json:"postal_code" validate:"required"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Verify      bool   `json:"verify"`
}

func (a addressRequest) address() types.Address {
	return types.Address{
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Address1:    a.Address1,
		Address2:    a.Address2,
		City:        a.City,
		StateCode:   a.StateCode,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
		Phone:       a.Phone,
	}
}

type billingPromptView struct {
	Ask        bool          `json:"ask"`
	SamePerson bool          `json:"same_person"`
	Prefill    types.Address `json:"prefill"`
	Stage      string        `json:"stage"`
}

func ShippingAddressSubmit(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prompt, err := svc.SubmitShippingAddress(r.Context(), payload.address(), payload.Verify)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, billingPromptView{
			Ask:        prompt.Ask,
			SamePerson: prompt.SamePerson,
			Prefill:    prompt.Prefill,
			Stage:      svc.Current().String(),
		})
	}
}

type billingPromptAnswer struct {
	Same       bool          `json:"same"`
	SamePerson bool          `json:"same_person"`
	Prefill    types.Address `json:"prefill"`
}

func BillingPromptResolve(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload billingPromptAnswer
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prompt := checkout.BillingPrompt{
			Ask:        true,
			SamePerson: payload.SamePerson,
			Prefill:    payload.Prefill,
		}
		if err := svc.ResolveBillingPrompt(r.Context(), prompt, payload.Same); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStageView(svc))
	}
}

func BillingAddressSubmit(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SubmitBillingAddress(r.Context(), payload.address(), payload.Verify); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStageView(svc))
	}
}

type shippingMethodRequest struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Override *struct {
		Type              string          `json:"type" validate:"required"`
		Value             decimal.Decimal `json:"value" validate:"required"`
		ManagerEmployeeID string          `json:"manager_employee_id" validate:"required"`
	} `json:"override,omitempty"`
}

func ShippingMethodSelect(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload shippingMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := basket.ShippingMethod{ID: payload.ID, Name: payload.Name, Price: payload.Price}
		var override *basket.PriceOverride
		if payload.Override != nil {
			override = &basket.PriceOverride{
				Type:              payload.Override.Type,
				Value:             payload.Override.Value,
				ManagerEmployeeID: payload.Override.ManagerEmployeeID,
			}
		}
		if err := svc.SelectShippingMethod(r.Context(), method, override); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStageView(svc))
	}
}

func OrderPlace(svc CheckoutService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.PlaceOrder(r.Context())
		if err != nil {
			// The snapshot may carry a fault payload worth logging even when
			// the order itself failed.
			if order.Fault != nil && logg != nil {
				ctx := logg.WithFields(r.Context(), map[string]any{
					"fault_type": order.Fault.Type,
				})
				logg.Warn(ctx, "order creation returned a fault basket")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

type confirmationView struct {
	Confirmed bool   `json:"confirmed"`
	Stage     string `json:"stage"`
}

func ConfirmationObserve(svc CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirmed := svc.ObserveConfirmation(r.Context())
		responses.WriteSuccess(w, confirmationView{
			Confirmed: confirmed,
			Stage:     svc.Current().String(),
		})
	}
}

type abandonRequest struct {
	EmployeeID       string `json:"employee_id" validate:"required"`
	EmployeePasscode string `json:"employee_passcode,omitempty"`
	StoreID          string `json:"store_id" validate:"required"`
}

func OrderAbandon(svc CheckoutService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload abandonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		creds := basket.AbandonCredentials{
			EmployeeID:       payload.EmployeeID,
			EmployeePasscode: payload.EmployeePasscode,
			StoreID:          payload.StoreID,
		}
		if err := svc.Abandon(r.Context(), creds); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}
