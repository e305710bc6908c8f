package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront-api/internal/customer"
	"storefront-api/internal/middleware"
	"storefront-api/internal/tracking"
)

// Routes builds the API route tree. Global middleware (logging, cors,
// metrics, tracing, sessions) is the caller's business; the read
// secret guard is applied here because it is route-specific.
func (h *Handler) Routes(readSecret string) chi.Router {
	r := chi.NewRouter()

	// Catalog reads
	r.Post("/list-products-by-filter", h.ListProductsByFilter)
	r.Post("/available-filter", h.AvailableFilter)
	r.Get("/get/{config_sku}", h.GetProduct)
	r.Get("/calculate-dtd/{simple_sku}/{qty}", h.CalculateDTD)
	r.Get("/new-products", h.NewProducts)
	r.Get("/last-chance", h.LastChance)
	r.Get("/categories/{gender}", h.CategoriesByGender)
	r.Get("/sizes/{product_type}", h.SizesByProductType)
	r.Get("/by-size/{size}", h.BySize)
	r.Get("/top-brands", h.TopBrands)
	r.Get("/complete-looks/{config_sku}", h.CompleteLooks)
	r.Get("/pages/{descriptor}", h.GetStaticPage)

	// Browsing telemetry
	r.Route("/product", func(r chi.Router) {
		r.Post("/view", h.TrackProduct(tracking.ActionView))
		r.Post("/click", h.TrackProduct(tracking.ActionClick))
		r.Post("/visit", h.TrackProduct(tracking.ActionVisit))
	})

	// Customer account
	r.Route("/customer", func(r chi.Router) {
		r.Route("/delivery-addresses", func(r chi.Router) {
			r.Get("/", h.ListDeliveryAddresses)
			r.Post("/add", h.AddDeliveryAddress)
			r.Post("/remove", h.RemoveDeliveryAddress)
		})
		r.Get("/answers", h.GetAnswers)
		r.Post("/answers", h.SaveAnswers)
	})

	r.Route("/seen", func(r chi.Router) {
		r.Get("/", h.GetList(customer.ListSeen))
		r.Post("/add", h.AddToList(customer.ListSeen))
		r.Post("/remove", h.RemoveFromList(customer.ListSeen))
	})
	r.Route("/wish", func(r chi.Router) {
		r.Get("/", h.GetList(customer.ListWish))
		r.Post("/add", h.AddToList(customer.ListWish))
		r.Post("/remove", h.RemoveFromList(customer.ListWish))
	})

	// Purchasing
	r.Post("/purchase", h.Purchase)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.MyOrders)
		r.Post("/transition", h.TransitionOrder)
		r.Post("/cancel-item", h.CancelItemBeforePayment)
		r.Post("/refund", h.RefundItem)
		r.With(middleware.RequireReadSecret(readSecret)).
			Post("/info/{order_number}", h.OrderInfo)
	})

	r.Route("/cancel-requests", func(r chi.Router) {
		r.Post("/", h.OpenCancelRequest)
		r.Get("/{number}", h.GetCancelRequest)
		r.Post("/{number}/resolve", h.ResolveCancelItem)
	})
	r.Route("/return-requests", func(r chi.Router) {
		r.Post("/", h.OpenReturnRequest)
		r.Get("/{number}", h.GetReturnRequest)
		r.Post("/{number}/advance", h.AdvanceReturnItem)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
