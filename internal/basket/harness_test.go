package basket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/enums"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/notify"
)

type staticTokens struct{}

func (staticTokens) Token(context.Context, string) (string, error) {
	return "test-token", nil
}

// fakeCommerce simulates the commerce basket API with strict etag
// preconditions, the patch channel, orders and payment sub-resources.
type fakeCommerce struct {
	t *testing.T

	mu      sync.Mutex
	basket  Basket
	version int
	orderNo string

	// confirmOnZero controls whether the simulated gateway also flips the
	// confirmation status when the payment balance reaches zero.
	confirmOnZero bool

	calls map[string]int

	// rejectNextMutations forces the next N mutating calls to fail with a
	// precondition fault regardless of the presented etag.
	rejectNextMutations int
}

func newFakeCommerce(t *testing.T) *fakeCommerce {
	return &fakeCommerce{
		t:             t,
		confirmOnZero: true,
		calls:         map[string]int{},
	}
}

func (f *fakeCommerce) etag() string {
	return fmt.Sprintf("v%d", f.version)
}

func (f *fakeCommerce) count(r *http.Request) {
	f.calls[r.Method+" "+r.URL.Path]++
}

func (f *fakeCommerce) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeCommerce) writeFault(w http.ResponseWriter, status int, faultType, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"fault": Fault{Type: faultType, Message: message},
	})
}

func (f *fakeCommerce) writeBasket(w http.ResponseWriter) {
	w.Header().Set("ETag", f.etag())
	_ = json.NewEncoder(w).Encode(f.basket)
}

func (f *fakeCommerce) checkEtag(w http.ResponseWriter, r *http.Request) bool {
	if f.rejectNextMutations > 0 {
		f.rejectNextMutations--
		f.writeFault(w, http.StatusPreconditionFailed, "PreconditionFailedException", "forced conflict")
		return false
	}
	// No precondition exists before the basket's first mutation.
	if f.version == 0 {
		return true
	}
	if r.Header.Get("If-Match") != f.etag() {
		f.writeFault(w, http.StatusPreconditionFailed, "InvalidIfMatchException", "etag mismatch")
		return false
	}
	return true
}

func (f *fakeCommerce) bump() {
	f.version++
}

// setGiftMessage plants a gift message on the first shipment, standing in
// for the storefront-side flows that attach one.
func (f *fakeCommerce) setGiftMessage(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.basket.Shipments) == 0 {
		f.basket.Shipments = []Shipment{{ShipmentID: "sh1"}}
	}
	f.basket.Shipments[0].GiftMessage = message
}

func decodeBody[T any](t *testing.T, r *http.Request) T {
	t.Helper()
	var out T
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading request body: %v", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decoding request body %s: %v", body, err)
		}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return out
}

func (f *fakeCommerce) applyPatch(raw string) {
	op, data, err := DecodeInstructionType(raw)
	if err != nil {
		f.t.Fatalf("decoding patch: %v", err)
	}
	switch op {
	case enums.PatchBasketReplace:
		var replace ReplaceInstruction
		if err := json.Unmarshal(data, &replace); err != nil {
			f.t.Fatalf("decoding replace payload: %v", err)
		}
		f.basket.ProductItems = replace.ProductItems
		f.basket.CouponItems = replace.CouponItems
		f.basket.BillingAddress = replace.BillingAddress
		f.basket.CustomerInfo = replace.CustomerInfo
	case enums.PatchProductPriceOverride:
		var override PriceOverrideInstruction
		if err := json.Unmarshal(data, &override); err != nil {
			f.t.Fatalf("decoding override payload: %v", err)
		}
		for i := range f.basket.ProductItems {
			if f.basket.ProductItems[i].ItemID == override.ItemID {
				f.basket.ProductItems[i].PriceOverrideType = override.Override.Type
				f.basket.ProductItems[i].PriceOverrideValue = override.Override.Value
				f.basket.ProductItems[i].ManagerEmployeeID = override.Override.ManagerEmployeeID
			}
		}
	case enums.PatchShippingPriceOverride:
		var override ShippingOverrideInstruction
		if err := json.Unmarshal(data, &override); err != nil {
			f.t.Fatalf("decoding shipping override payload: %v", err)
		}
		if len(f.basket.Shipments) == 0 {
			f.basket.Shipments = []Shipment{{ShipmentID: "sh1"}}
		}
		applied := override.Override
		f.basket.Shipments[0].ShippingPriceOverride = &applied
		if applied.Type == "fixed_price" {
			f.basket.ShippingTotal = applied.Value
		}
	case enums.PatchValidateCartForCheckout:
		enabled := len(f.basket.ProductItems) > 0
		f.basket.Extension = mustJSON(f.t, map[string]any{"enable_checkout": enabled})
	case enums.PatchShippingMethodList:
		f.basket.Extension = mustJSON(f.t, map[string]any{
			"applicable_shipping_methods": []ShippingMethod{
				{ID: "ground", Name: "Ground", Price: decimal.RequireFromString("4.99")},
				{ID: "express", Name: "Express", Price: decimal.RequireFromString("14.99")},
			},
		})
	case enums.PatchAfterAbandonOrder:
		var restore AfterAbandonInstruction
		if err := json.Unmarshal(data, &restore); err != nil {
			f.t.Fatalf("decoding after-abandon payload: %v", err)
		}
		if len(f.basket.Shipments) == 0 {
			f.basket.Shipments = []Shipment{{ShipmentID: "sh1"}}
		}
		f.basket.Shipments[0].ShippingPriceOverride = restore.ShippingOverride
		f.basket.Shipments[0].GiftMessage = restore.GiftMessage
		if restore.Currency != "" {
			f.basket.Currency = restore.Currency
		}
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func (f *fakeCommerce) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.count(r)
		w.Header().Set("Content-Type", "application/json")

		path := strings.TrimPrefix(r.URL.Path, "/")
		parts := strings.Split(path, "/")

		switch {
		case r.Method == http.MethodPost && path == "baskets":
			if f.basket.BasketID == "" {
				f.basket = Basket{
					BasketID: "b-100",
					Currency: enums.CurrencyUSD,
				}
			}
			body := decodeBody[map[string]string](f.t, r)
			if raw, ok := body["c_patch"]; ok {
				f.applyPatch(raw)
			}
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "baskets":
			f.writeBasket(w)

		case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "baskets":
			if !f.checkEtag(w, r) {
				return
			}
			f.basket = Basket{}
			f.version = 0
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodPatch && len(parts) == 2 && parts[0] == "baskets":
			if !f.checkEtag(w, r) {
				return
			}
			body := decodeBody[map[string]string](f.t, r)
			if raw, ok := body["c_patch"]; ok {
				f.applyPatch(raw)
			}
			if currency, ok := body["currency"]; ok {
				f.basket.Currency = enums.Currency(currency)
			}
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "baskets" && parts[2] == "items":
			if !f.checkEtag(w, r) {
				return
			}
			body := decodeBody[struct {
				ProductItems []ProductItem `json:"product_items"`
			}](f.t, r)
			for i, item := range body.ProductItems {
				item.ItemID = fmt.Sprintf("li-%d", len(f.basket.ProductItems)+i+1)
				f.basket.ProductItems = append(f.basket.ProductItems, item)
			}
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodPatch && len(parts) == 4 && parts[0] == "baskets" && parts[2] == "items":
			if !f.checkEtag(w, r) {
				return
			}
			update := decodeBody[ProductItemUpdate](f.t, r)
			for i := range f.basket.ProductItems {
				if f.basket.ProductItems[i].ItemID == parts[3] && update.Quantity > 0 {
					f.basket.ProductItems[i].Quantity = update.Quantity
				}
			}
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodDelete && len(parts) == 4 && parts[0] == "baskets" && parts[2] == "items":
			if !f.checkEtag(w, r) {
				return
			}
			kept := f.basket.ProductItems[:0]
			for _, item := range f.basket.ProductItems {
				if item.ItemID != parts[3] {
					kept = append(kept, item)
				}
			}
			f.basket.ProductItems = kept
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodPut && len(parts) == 3 && parts[0] == "baskets":
			if !f.checkEtag(w, r) {
				return
			}
			f.applyPut(parts[2], r)
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "baskets" && parts[2] == "coupons":
			if !f.checkEtag(w, r) {
				return
			}
			body := decodeBody[map[string]string](f.t, r)
			f.basket.CouponItems = append(f.basket.CouponItems, CouponItem{
				CouponItemID: fmt.Sprintf("cp-%d", len(f.basket.CouponItems)+1),
				Code:         body["code"],
				Valid:        true,
				Status:       enums.CouponApplied,
			})
			f.bump()
			f.recalculate()
			f.writeBasket(w)

		case r.Method == http.MethodPost && path == "orders":
			if !f.checkEtag(w, r) {
				return
			}
			if len(f.basket.ProductItems) == 0 {
				f.writeFault(w, http.StatusUnprocessableEntity, "BasketEmptyException", "cannot order an empty basket")
				return
			}
			f.orderNo = "o-9000"
			f.basket.OrderNo = f.orderNo
			f.basket.PaymentBalance = f.basket.OrderTotal
			f.basket.ConfirmationStatus = enums.ConfirmationNotConfirmed
			f.bump()
			f.writeBasket(w)

		case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "orders" && parts[2] == "abandon":
			f.orderNo = ""
			f.basket = Basket{}
			f.version = 0
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodPost && len(parts) >= 3 && parts[0] == "orders":
			f.handlePayment(w, r, parts)

		case r.Method == http.MethodPost && path == "gift_cards/balance":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"payment_balance": decimal.RequireFromString("25.00"),
			})

		default:
			f.writeFault(w, http.StatusNotFound, "ResourceNotFoundException", r.URL.Path)
		}
	})
}

func (f *fakeCommerce) applyPut(resource string, r *http.Request) {
	switch resource {
	case "shipping_address":
		address := decodeBody[map[string]any](f.t, r)
		raw := mustJSON(f.t, address)
		if len(f.basket.Shipments) == 0 {
			f.basket.Shipments = []Shipment{{ShipmentID: "sh1"}}
		}
		_ = json.Unmarshal(raw, &f.basket.Shipments[0].ShippingAddress)
	case "billing_address":
		address := decodeBody[map[string]any](f.t, r)
		raw := mustJSON(f.t, address)
		_ = json.Unmarshal(raw, &f.basket.BillingAddress)
	case "shipping_method":
		body := decodeBody[struct {
			ShippingMethod ShippingMethod `json:"shipping_method"`
			Patch          string         `json:"c_patch"`
		}](f.t, r)
		if len(f.basket.Shipments) == 0 {
			f.basket.Shipments = []Shipment{{ShipmentID: "sh1"}}
		}
		method := body.ShippingMethod
		f.basket.Shipments[0].ShippingMethod = &method
		f.basket.ShippingTotal = method.Price
		if body.Patch != "" {
			f.applyPatch(body.Patch)
		}
	case "customer":
		raw := mustJSON(f.t, decodeBody[map[string]any](f.t, r))
		_ = json.Unmarshal(raw, &f.basket.CustomerInfo)
	}
}

func (f *fakeCommerce) handlePayment(w http.ResponseWriter, r *http.Request, parts []string) {
	body := decodeBody[struct {
		Card   CardInfo        `json:"card"`
		Amount decimal.Decimal `json:"amount"`
	}](f.t, r)

	authorize := func(record PaymentInstrumentRecord) {
		f.basket.PaymentDetails = append(f.basket.PaymentDetails, record)
		authorized := decimal.Zero
		for _, detail := range f.basket.PaymentDetails {
			if detail.Status != enums.TenderDeclined {
				authorized = authorized.Add(detail.AmountAuthorized)
			}
		}
		f.basket.PaymentBalance = f.basket.OrderTotal.Sub(authorized)
		if f.basket.PaymentBalance.IsZero() && f.confirmOnZero {
			f.basket.ConfirmationStatus = enums.ConfirmationConfirmed
		}
	}

	switch parts[len(parts)-1] {
	case "payment_instruments":
		// Applied tenders record their amount but settle nothing yet.
		f.basket.PaymentDetails = append(f.basket.PaymentDetails, PaymentInstrumentRecord{
			InstrumentID:     fmt.Sprintf("pi-%d", len(f.basket.PaymentDetails)+1),
			Kind:             body.Card.Kind,
			MaskedIdentifier: body.Card.MaskedIdentifier,
			AmountAuthorized: body.Amount,
			Status:           enums.TenderApplied,
		})
		f.basket.PaymentBalance = f.basket.OrderTotal
	case "authorize":
		if len(parts) == 4 { // orders/{no}/payment_instruments/authorize
			authorize(PaymentInstrumentRecord{
				InstrumentID:     fmt.Sprintf("pi-%d", len(f.basket.PaymentDetails)+1),
				Kind:             body.Card.Kind,
				MaskedIdentifier: body.Card.MaskedIdentifier,
				AmountAuthorized: body.Amount,
				Status:           enums.TenderAuthorized,
			})
		} else { // orders/{no}/authorize: finalize all applied tenders
			for i := range f.basket.PaymentDetails {
				if f.basket.PaymentDetails[i].Status == enums.TenderApplied {
					f.basket.PaymentDetails[i].Status = enums.TenderAuthorized
				}
			}
			f.basket.PaymentBalance = decimal.Zero
			if f.confirmOnZero {
				f.basket.ConfirmationStatus = enums.ConfirmationConfirmed
			}
		}
	default:
		f.writeFault(w, http.StatusNotFound, "ResourceNotFoundException", r.URL.Path)
		return
	}
	_ = json.NewEncoder(w).Encode(f.basket)
}

func (f *fakeCommerce) recalculate() {
	subtotal := decimal.Zero
	for _, item := range f.basket.ProductItems {
		price := item.Price
		if price.IsZero() {
			price = item.BasePrice
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	f.basket.ProductSubTotal = subtotal
	f.basket.ProductTotal = subtotal
	f.basket.TaxTotal = subtotal.Mul(decimal.RequireFromString("0.1")).Round(2)
	f.basket.OrderTotal = f.basket.ProductTotal.Add(f.basket.ShippingTotal).Add(f.basket.TaxTotal)
}

type testEngine struct {
	client *Client
	handle *Handle
	server *fakeCommerce
	hub    *notify.Hub
}

func newTestEngine(t *testing.T, mutateCfg ...func(*config.CommerceConfig)) *testEngine {
	t.Helper()

	fake := newFakeCommerce(t)
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := config.CommerceConfig{
		Host:            "shop.example.com",
		SiteID:          "outlet",
		SiteCurrency:    "USD",
		DisplayCurrency: "USD",
	}
	for _, mutate := range mutateCfg {
		mutate(&cfg)
	}

	hub := notify.NewHub()
	client, err := NewClient(ClientParams{
		Config:  cfg,
		Tokens:  staticTokens{},
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Hub:     hub,
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	return &testEngine{
		client: client,
		handle: NewHandle(),
		server: fake,
		hub:    hub,
	}
}
