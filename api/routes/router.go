package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborlane/clienteling-core/api/controllers"
	"github.com/harborlane/clienteling-core/api/middleware"
	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/logger"
)

// NewRouter wires the HTTP surface around a single associate session: one
// basket handle, one checkout machine, one payment ledger.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	cache controllers.Pinger,
	handle *basket.Handle,
	basketService controllers.BasketService,
	checkoutService controllers.CheckoutService,
	ledgerService controllers.LedgerService,
	giftCards controllers.GiftCardChecker,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, cache))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/basket", func(r chi.Router) {
		r.Get("/", controllers.BasketFetch(basketService, handle, logg))
		r.Get("/snapshot", controllers.BasketSnapshot(handle))
		r.Delete("/", controllers.BasketDelete(basketService, handle, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", controllers.LineItemsAdd(basketService, handle, logg))
			r.Put("/{itemID}", controllers.LineItemUpdate(basketService, handle, logg))
			r.Delete("/{itemID}", controllers.LineItemRemove(basketService, handle, logg))
			r.Put("/{itemID}/price-override", controllers.PriceOverrideApply(basketService, handle, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/", controllers.CouponAdd(basketService, handle, logg))
			r.Delete("/{couponItemID}", controllers.CouponRemove(basketService, handle, logg))
		})

		r.Get("/shipping-methods", controllers.ShippingMethodsList(basketService, handle, logg))
		r.Put("/customer", controllers.CustomerInfoSet(basketService, handle, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Get("/stage", controllers.StageInspect(checkoutService))
		r.Post("/begin", controllers.CheckoutBegin(checkoutService, logg))
		r.Put("/shipping-address", controllers.ShippingAddressSubmit(checkoutService, logg))
		r.Post("/billing-prompt", controllers.BillingPromptResolve(checkoutService, logg))
		r.Put("/billing-address", controllers.BillingAddressSubmit(checkoutService, logg))
		r.Put("/shipping-method", controllers.ShippingMethodSelect(checkoutService, logg))
		r.Post("/order", controllers.OrderPlace(checkoutService, handle, logg))
		r.Post("/confirmation", controllers.ConfirmationObserve(checkoutService))
		r.Post("/abandon", controllers.OrderAbandon(checkoutService, handle, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/balance", controllers.PaymentBalance(ledgerService))
		r.Post("/tenders", controllers.TenderCollect(ledgerService, logg))
		r.Post("/gift-cards/balance", controllers.GiftCardBalanceCheck(giftCards, logg))
	})

	return r
}
