package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/api/responses"
	"github.com/harborlane/clienteling-core/api/validators"
	"github.com/harborlane/clienteling-core/internal/basket"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// BasketService is the slice of the basket client the basket endpoints use.
type BasketService interface {
	FetchOrCreate(ctx context.Context, h *basket.Handle) (basket.Basket, error)
	Delete(ctx context.Context, h *basket.Handle) error
	AddLineItems(ctx context.Context, h *basket.Handle, items []basket.ProductItem) (basket.Basket, error)
	ReplaceLineItem(ctx context.Context, h *basket.Handle, itemID string, info basket.ProductItemUpdate) (basket.Basket, error)
	RemoveLineItem(ctx context.Context, h *basket.Handle, itemID string) (basket.Basket, error)
	SetProductPriceOverride(ctx context.Context, h *basket.Handle, override basket.PriceOverrideInstruction) (basket.Basket, error)
	AddCoupon(ctx context.Context, h *basket.Handle, code string) (basket.Basket, error)
	RemoveCoupon(ctx context.Context, h *basket.Handle, couponItemID string) (basket.Basket, error)
	GetShippingMethods(ctx context.Context, h *basket.Handle) ([]basket.ShippingMethod, error)
	SetCustomerInfo(ctx context.Context, h *basket.Handle, info types.CustomerInfo) (basket.Basket, error)
}

// basketView is the wire shape of a basket snapshot, with the client-only
// workflow fields and version token made visible.
type basketView struct {
	basket.Basket
	Workflow basket.WorkflowState `json:"workflow"`
	Etag     string               `json:"etag,omitempty"`
}

func newBasketView(h *basket.Handle) basketView {
	snapshot := h.Snapshot()
	return basketView{
		Basket:   snapshot,
		Workflow: snapshot.Workflow,
		Etag:     h.Etag(),
	}
}

func BasketFetch(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.FetchOrCreate(r.Context(), h); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

func BasketSnapshot(h *basket.Handle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, newBasketView(h))
	}
}

func BasketDelete(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), h); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type addItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type itemRequest struct {
	ProductID   string                   `json:"product_id" validate:"required"`
	Quantity    int                      `json:"quantity" validate:"required,gt=0"`
	OptionItems []basket.OptionSelection `json:"option_items,omitempty"`
}

func LineItemsAdd(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]basket.ProductItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, basket.ProductItem{
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				OptionItems: item.OptionItems,
			})
		}

		if _, err := svc.AddLineItems(r.Context(), h, items); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

type updateItemRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func LineItemUpdate(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		update := basket.ProductItemUpdate{ProductID: payload.ProductID, Quantity: payload.Quantity}
		if _, err := svc.ReplaceLineItem(r.Context(), h, itemID, update); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

func LineItemRemove(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}
		if _, err := svc.RemoveLineItem(r.Context(), h, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

type priceOverrideRequest struct {
	Type              string          `json:"type" validate:"required"`
	Value             decimal.Decimal `json:"value" validate:"required"`
	ManagerEmployeeID string          `json:"manager_employee_id" validate:"required"`
	Reason            string          `json:"reason,omitempty"`
}

func PriceOverrideApply(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}

		var payload priceOverrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		override := basket.PriceOverrideInstruction{
			ItemID: itemID,
			Override: basket.PriceOverride{
				Type:              payload.Type,
				Value:             payload.Value,
				ManagerEmployeeID: payload.ManagerEmployeeID,
				Reason:            payload.Reason,
			},
		}
		if _, err := svc.SetProductPriceOverride(r.Context(), h, override); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

type couponRequest struct {
	Code string `json:"code" validate:"required"`
}

func CouponAdd(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload couponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.AddCoupon(r.Context(), h, payload.Code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

func CouponRemove(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		couponItemID := chi.URLParam(r, "couponItemID")
		if couponItemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon item id required"))
			return
		}
		if _, err := svc.RemoveCoupon(r.Context(), h, couponItemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}

func ShippingMethodsList(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		methods, err := svc.GetShippingMethods(r.Context(), h)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"shipping_methods": methods})
	}
}

type customerInfoRequest struct {
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	Email        string `json:"email" validate:"required,email"`
}

func CustomerInfoSet(svc BasketService, h *basket.Handle, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload customerInfoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		info := types.CustomerInfo{
			CustomerID:   payload.CustomerID,
			CustomerName: payload.CustomerName,
			Email:        payload.Email,
		}
		if _, err := svc.SetCustomerInfo(r.Context(), h, info); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketView(h))
	}
}
