package basket

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/enums"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/notify"
)

func seedItems() []ProductItem {
	return []ProductItem{{
		ProductID: "sku-1",
		Quantity:  2,
		BasePrice: decimal.RequireFromString("10.00"),
		Price:     decimal.RequireFromString("10.00"),
	}}
}

func TestFetchOrCreateEstablishesEtag(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	snapshot, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	assert.Equal(t, "b-100", snapshot.BasketID)
	assert.Equal(t, "v1", engine.handle.Etag())
	assert.Equal(t, enums.StageCart, engine.handle.Workflow().CheckoutStatus)
}

func TestFetchOrCreateConvertsCurrency(t *testing.T) {
	engine := newTestEngine(t, func(cfg *config.CommerceConfig) {
		cfg.DisplayCurrency = "CAD"
	})
	ctx := context.Background()

	snapshot, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	assert.Equal(t, enums.CurrencyCAD, snapshot.Currency)
	assert.Equal(t, 1, engine.server.callCount("PATCH /baskets/b-100"),
		"conversion should be a single silent follow-up")
	assert.Equal(t, "v2", engine.handle.Etag())
}

func TestMutationsCarryEtagForward(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	snapshot, err := engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)
	require.Len(t, snapshot.ProductItems, 1)
	assert.Equal(t, "v2", engine.handle.Etag())

	snapshot, err = engine.client.ReplaceLineItem(ctx, engine.handle, snapshot.ProductItems[0].ItemID, ProductItemUpdate{Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.ProductItems[0].Quantity)
	assert.Equal(t, "v3", engine.handle.Etag())
}

func TestStaleEtagResolvedByOneResyncAndRetry(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	engine.server.mu.Lock()
	engine.server.rejectNextMutations = 1
	engine.server.mu.Unlock()

	snapshot, err := engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)
	assert.Len(t, snapshot.ProductItems, 1)

	assert.Equal(t, 2, engine.server.callCount("POST /baskets/b-100/items"),
		"one failed attempt plus one retry")
	assert.Equal(t, 1, engine.server.callCount("GET /baskets/b-100"),
		"exactly one resync between the attempts")
}

func TestConflictOnRetrySurfaces(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	engine.server.mu.Lock()
	engine.server.rejectNextMutations = 2
	engine.server.mu.Unlock()

	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))

	assert.Equal(t, 2, engine.server.callCount("POST /baskets/b-100/items"),
		"the retry is bounded to one attempt")
	assert.Equal(t, 1, engine.server.callCount("GET /baskets/b-100"))
}

func TestWorkflowStateSurvivesServerReplace(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	engine.handle.UpdateWorkflow(func(w *WorkflowState) {
		w.CheckoutStatus = enums.StageShippingAddress
		w.LastCheckoutStatus = enums.StageCart
		w.ShipToStore = true
	})

	snapshot, err := engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)

	assert.Equal(t, enums.StageShippingAddress, snapshot.Workflow.CheckoutStatus)
	assert.Equal(t, enums.StageCart, snapshot.Workflow.LastCheckoutStatus)
	assert.True(t, snapshot.Workflow.ShipToStore)
}

func TestAddCouponRejectsLocalDuplicate(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)
	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)

	snapshot, err := engine.client.AddCoupon(ctx, engine.handle, "SAVE10")
	require.NoError(t, err)
	require.Len(t, snapshot.CouponItems, 1)

	before := engine.server.callCount("POST /baskets/b-100/coupons")
	_, err = engine.client.AddCoupon(ctx, engine.handle, "SAVE10")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	var detailed *pkgerrors.Error
	require.ErrorAs(t, err, &detailed)
	details, ok := detailed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(enums.CouponAlreadyInBasket), details["status_code"])

	assert.Equal(t, before, engine.server.callCount("POST /baskets/b-100/coupons"),
		"duplicate must be rejected without a server round trip")
}

func TestValidateCartForCheckout(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	enabled, err := engine.client.ValidateCartForCheckout(ctx, engine.handle)
	require.NoError(t, err)
	assert.False(t, enabled, "an empty cart cannot check out")

	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)

	enabled, err = engine.client.ValidateCartForCheckout(ctx, engine.handle)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestGetShippingMethods(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	methods, err := engine.client.GetShippingMethods(ctx, engine.handle)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "ground", methods[0].ID)
}

func TestShippingOverrideLandsOnShipment(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)
	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)

	override := ShippingOverrideInstruction{
		Override: PriceOverride{
			Type:              "fixed_price",
			Value:             decimal.RequireFromString("0.00"),
			ManagerEmployeeID: "mgr-7",
		},
	}
	_, err = engine.client.SetShippingMethod(ctx, engine.handle, ShippingMethod{ID: "ground", Price: decimal.RequireFromString("4.99")}, override)
	require.NoError(t, err)

	snap := engine.handle.Snapshot()
	applied := snap.ShippingPriceOverride()
	require.NotNil(t, applied, "the override must ride the shipping method call onto the shipment")
	assert.Equal(t, "fixed_price", applied.Type)
	assert.Equal(t, "mgr-7", applied.ManagerEmployeeID)
	assert.True(t, engine.handle.Snapshot().ShippingTotal.IsZero())
}

func TestDeleteRetriesOnceOnConflict(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	engine.server.mu.Lock()
	engine.server.rejectNextMutations = 1
	engine.server.mu.Unlock()

	require.NoError(t, engine.client.Delete(ctx, engine.handle))
	assert.Equal(t, SentinelID, engine.handle.ID())

	assert.Equal(t, 2, engine.server.callCount("DELETE /baskets/b-100"),
		"one failed attempt plus one retry")
	assert.Equal(t, 1, engine.server.callCount("GET /baskets/b-100"),
		"exactly one resync between the attempts")
}

func TestCreateOrderRetriesOnceOnConflict(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)
	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)

	engine.server.mu.Lock()
	engine.server.rejectNextMutations = 1
	engine.server.mu.Unlock()

	snapshot, err := engine.client.CreateOrder(ctx, engine.handle)
	require.NoError(t, err)
	assert.Equal(t, "o-9000", snapshot.OrderNo)
	assert.Equal(t, 2, engine.server.callCount("POST /orders"))
}

func TestCreateOrderFaultAttachedToSnapshot(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	snapshot, err := engine.client.CreateOrder(ctx, engine.handle)
	require.Error(t, err)
	require.NotNil(t, snapshot.Fault)
	assert.Equal(t, "BasketEmptyException", snapshot.Fault.Type)
}

func TestPaymentFlowAuthorizeAsYouGo(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)
	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)
	order, err := engine.client.CreateOrder(ctx, engine.handle)
	require.NoError(t, err)

	half := order.OrderTotal.Div(decimal.NewFromInt(2)).Round(2)
	result, err := engine.client.AuthorizeGiftCard(ctx, engine.handle, CardInfo{MaskedIdentifier: "****1111"}, half)
	require.NoError(t, err)
	assert.Equal(t, enums.ConfirmationNotConfirmed, result.ConfirmationStatus)
	assert.True(t, result.PaymentBalance.GreaterThan(decimal.Zero))

	remainder := result.PaymentBalance
	result, err = engine.client.AuthorizeCreditCard(ctx, engine.handle, CardInfo{MaskedIdentifier: "****4242"}, remainder)
	require.NoError(t, err)
	assert.Equal(t, enums.ConfirmationConfirmed, result.ConfirmationStatus)
	assert.True(t, result.PaymentBalance.IsZero())
}

func TestPaymentFlowAuthorizeAtEnd(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)
	_, err = engine.client.AddLineItems(ctx, engine.handle, seedItems())
	require.NoError(t, err)
	_, err = engine.client.CreateOrder(ctx, engine.handle)
	require.NoError(t, err)

	result, err := engine.client.ApplyCreditCard(ctx, engine.handle, CardInfo{MaskedIdentifier: "****4242"}, decimal.RequireFromString("22.00"))
	require.NoError(t, err)
	assert.Equal(t, enums.ConfirmationNotConfirmed, result.ConfirmationStatus)

	result, err = engine.client.AuthorizePayment(ctx, engine.handle)
	require.NoError(t, err)
	assert.Equal(t, enums.ConfirmationConfirmed, result.ConfirmationStatus)
	assert.True(t, result.PaymentBalance.IsZero())
}

func TestPaymentRequiresOrder(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	_, err = engine.client.AuthorizeCreditCard(ctx, engine.handle, CardInfo{}, decimal.NewFromInt(5))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestGiftCardBalance(t *testing.T) {
	engine := newTestEngine(t)

	balance, err := engine.client.GiftCardBalance(context.Background(), CardInfo{MaskedIdentifier: "****1111"})
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("25.00")))
}

func TestAbandonRebuildsBasket(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)
	_, err = engine.client.AddLineItems(ctx, engine.handle, []ProductItem{{
		ProductID:          "sku-1",
		Quantity:           1,
		BasePrice:          decimal.RequireFromString("50.00"),
		Price:              decimal.RequireFromString("40.00"),
		PriceOverrideType:  "fixed_price",
		PriceOverrideValue: decimal.RequireFromString("40.00"),
		ManagerEmployeeID:  "mgr-7",
	}})
	require.NoError(t, err)
	_, err = engine.client.AddCoupon(ctx, engine.handle, "SAVE10")
	require.NoError(t, err)

	engine.server.setGiftMessage("Happy birthday")
	shippingOverride := ShippingOverrideInstruction{
		Override: PriceOverride{
			Type:              "fixed_price",
			Value:             decimal.RequireFromString("0.00"),
			ManagerEmployeeID: "mgr-7",
		},
	}
	_, err = engine.client.SetShippingMethod(ctx, engine.handle, ShippingMethod{ID: "ground", Price: decimal.RequireFromString("4.99")}, shippingOverride)
	require.NoError(t, err)
	_, err = engine.client.CreateOrder(ctx, engine.handle)
	require.NoError(t, err)

	err = engine.client.AbandonOrder(ctx, engine.handle, AbandonCredentials{EmployeeID: "emp-1", StoreID: "store-9"})
	require.NoError(t, err)

	rebuilt := engine.handle.Snapshot()
	assert.Empty(t, rebuilt.OrderNo)
	require.Len(t, rebuilt.ProductItems, 1)
	assert.Equal(t, "sku-1", rebuilt.ProductItems[0].ProductID)
	assert.Empty(t, rebuilt.ProductItems[0].PriceOverrideType,
		"line-level overrides require fresh authorization after abandon")
	require.Len(t, rebuilt.CouponItems, 1)
	assert.Equal(t, "SAVE10", rebuilt.CouponItems[0].Code)

	restored := rebuilt.ShippingPriceOverride()
	require.NotNil(t, restored, "the shipping override survives the rebuild")
	assert.Equal(t, "mgr-7", restored.ManagerEmployeeID)
	assert.True(t, restored.Value.IsZero())
	assert.Equal(t, "Happy birthday", rebuilt.GiftMessage())
}

func TestDeleteClearsHandle(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	require.NoError(t, engine.client.Delete(ctx, engine.handle))
	assert.Equal(t, SentinelID, engine.handle.ID())
	assert.Empty(t, engine.handle.Etag())
}

func TestMutationsPublishSyncEvents(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	events, cancel := engine.hub.Subscribe(notify.TopicBasketSync, 4)
	defer cancel()

	_, err := engine.client.FetchOrCreate(ctx, engine.handle)
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, notify.TopicBasketSync, event.Topic)
	default:
		t.Fatal("expected a basket sync event")
	}
}
