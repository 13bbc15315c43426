package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterDeps collects everything the HTTP surface needs.
type RouterDeps struct {
	Auth      AuthService
	Accounts  *AuthHandler
	Catalog   *CatalogHandler
	Cart      *CartHandler
	Orders    *OrderHandler
	Admin     *AdminHandler
	Timeout   time.Duration
	MaxBodySz int64
}

// NewRouter wires the public, customer and admin route trees.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Timeout))
	r.Use(middleware.Compress(5))
	r.Use(bodyLimit(deps.MaxBodySz))
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface
		r.Post("/auth/register", deps.Accounts.Register)
		r.Post("/auth/login", deps.Accounts.Login)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", deps.Catalog.ListBooks)
			r.Get("/{id}", deps.Catalog.GetBook)
			r.Get("/{id}/stock", deps.Catalog.BookStock)
		})
		r.Get("/skus/{skuId}/stock", deps.Catalog.SkuStock)

		// Customer surface
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Auth))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", deps.Cart.GetCart)
				r.Post("/items", deps.Cart.AddItem)
				r.Patch("/items/{itemId}", deps.Cart.UpdateItem)
				r.Delete("/items/{itemId}", deps.Cart.RemoveItem)
				r.Delete("/", deps.Cart.Clear)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", deps.Orders.Create)
				r.Get("/", deps.Orders.List)
				r.Get("/{id}", deps.Orders.Get)
				r.Patch("/{id}/cancel", deps.Orders.Cancel)
			})
		})

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Auth))
			r.Use(RequireAdmin)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", deps.Admin.ListOrders)
				r.Get("/{id}", deps.Admin.GetOrder)
				r.Patch("/{id}/status", deps.Admin.UpdateOrderStatus)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", deps.Admin.ListInventory)
				r.Get("/low-stock", deps.Admin.ListLowStock)
				r.Put("/{skuId}", deps.Admin.UpdateInventory)
			})
		})
	})

	return r
}

func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
