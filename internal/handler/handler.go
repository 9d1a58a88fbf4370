// Package handler serves the storefront and admin HTTP API.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/swag-store/internal/domain/analytics"
	"github.com/xenking/swag-store/internal/domain/auth"
	"github.com/xenking/swag-store/internal/domain/cart"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/order"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
	"github.com/xenking/swag-store/internal/domain/user"
)

// HeaderAPIKey carries the admin API key.
const HeaderAPIKey = "api_key"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
}

// Deps are the services and repositories the Handler delegates to.
type Deps struct {
	Products  product.Repository
	Catalog   *product.Service
	Carts     *cart.Service
	Orders    *order.Service
	Coupons   coupon.Repository
	Stock     *stock.Service
	Users     *user.Service
	Analytics *analytics.Service
	Auth      *auth.Authenticator
}

// Handler implements the HTTP endpoints on top of the domain services.
type Handler struct {
	Deps
	imageBaseURL string
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{Deps: deps, imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/")}
}

// Routes registers every endpoint on r. Mount it under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/guest", h.Guest)

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/products/{id}/price", h.PriceProduct)

	r.Route("/cart/{userKey}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Put("/items/{productID}", h.SetCartItem)
		r.Delete("/items/{productID}", h.RemoveCartItem)
	})

	r.Post("/quote", h.Quote)
	r.Post("/coupons/analyze", h.AnalyzeCoupons)
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/history", h.OrderHistory)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireAPIKey)

		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Put("/products/{id}/tiers", h.SetProductTiers)

		r.Post("/stock/update", h.UpdateStock)
		r.Get("/stock/history", h.StockHistory)

		r.Get("/coupons", h.ListCoupons)
		r.Post("/coupons", h.CreateCoupon)
		r.Put("/coupons/{code}", h.UpdateCoupon)
		r.Delete("/coupons/{code}", h.DeleteCoupon)

		r.Get("/orders", h.ListOrders)
		r.Get("/analytics", h.GetAnalytics)
	})
}

// RequireAPIKey authenticates admin requests by the api_key header and
// requires the admin scope.
func (h *Handler) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.Auth.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
		if err != nil {
			fail(w, r, err)
			return
		}
		if !info.HasScope(auth.ScopeAdmin) {
			fail(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), info)))
	})
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(path, "/")
}
