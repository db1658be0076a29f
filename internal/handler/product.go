package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/delifood-checkout/internal/domain/product"
)

// ListProducts returns every active product.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListActive(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeProducts(w, products)
}

// ListRestaurantProducts returns the active menu of one restaurant.
func (h *Handler) ListRestaurantProducts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "restaurantId")
	if err != nil {
		fail(w, r, err)
		return
	}
	products, err := h.products.ListByRestaurant(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeProducts(w, products)
}

func writeProducts(w http.ResponseWriter, products []product.Product) {
	writeSuccess(w, func(e *jx.Encoder) {
		e.Field("products", func(e *jx.Encoder) {
			e.ArrStart()
			for _, p := range products {
				encodeProduct(e, p)
			}
			e.ArrEnd()
		})
	})
}
