// Package handler exposes the checkout API over HTTP with a chi router and a
// jx JSON codec.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/delifood-checkout/internal/domain/order"
	"github.com/xenking/delifood-checkout/internal/domain/product"
)

// HeaderIdempotencyKey lets a client retry a confirm without creating a
// second order.
const HeaderIdempotencyKey = "Idempotency-Key"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// OrderService is the order use-case surface served over HTTP.
type OrderService interface {
	Quote(ctx context.Context, items []order.Item) (order.Quote, error)
	Commit(ctx context.Context, req order.CommitRequest) (*order.CommitResult, error)
	UpdateStatus(ctx context.Context, id int64, to order.Status) (*order.Order, error)
	ForDelivery(ctx context.Context) ([]order.DeliveryView, error)
	ForRestaurant(ctx context.Context, restaurantID int64) ([]order.RestaurantView, error)
}

var _ OrderService = (*order.Service)(nil)

// Handler serves the /api routes.
type Handler struct {
	orders   OrderService
	products product.Lister
}

// New creates a Handler.
func New(orders OrderService, products product.Lister) *Handler {
	return &Handler{orders: orders, products: products}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, order.CodeNotFound, "Recurso no encontrado")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, order.CodeBadRequest, "Método no permitido")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/preview", h.Preview)
			r.Post("/confirm", h.Confirm)
			r.Get("/for-delivery", h.ForDelivery)
			r.Get("/by-restaurant/{restaurantId}", h.ForRestaurant)
			r.Patch("/{orderId}/status", h.UpdateStatus)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/by-restaurant/{restaurantId}", h.ListRestaurantProducts)
		})
	})
}
