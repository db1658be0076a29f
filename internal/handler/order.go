package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/delifood-checkout/internal/domain/order"
)

// maxIdempotencyKeyLen bounds the Idempotency-Key header.
const maxIdempotencyKeyLen = 128

// Preview prices a cart without reserving anything. Business-rule failures
// are reported with 200 and hasError set.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCart(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}

	q, err := h.orders.Quote(r.Context(), req.Items)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(!q.HasError) })
		encodeQuoteFields(e, q)
	})
}

// Confirm commits a cart as an order.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCart(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		writeFailure(w, http.StatusBadRequest, order.CodeBadRequest, "Idempotency-Key demasiado largo")
		return
	}

	res, err := h.orders.Commit(r.Context(), order.CommitRequest{
		UserID:         req.UserID,
		Items:          req.Items,
		IdempotencyKey: key,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	o := res.Order
	zctx.From(r.Context()).Info("Order confirmed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.Bool("replayed", res.Replayed),
		zap.Bool("notified", res.Notified),
	)
	writeSuccess(w, func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("totals", func(e *jx.Encoder) {
			e.ObjStart()
			e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal()) })
			e.Field("deliveryFee", func(e *jx.Encoder) { encodeMoney(e, o.DeliveryFee) })
			e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
			e.ObjEnd()
		})
		e.Field("etaMinutes", func(e *jx.Encoder) { e.Int(o.ETAMinutes) })
		e.Field("message", func(e *jx.Encoder) { e.Str(res.Message) })
		e.Field("notified", func(e *jx.Encoder) { e.Bool(res.Notified) })
		e.Field("replayed", func(e *jx.Encoder) { e.Bool(res.Replayed) })
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
}

// ForDelivery lists the orders a courier may pick up.
func (h *Handler) ForDelivery(w http.ResponseWriter, r *http.Request) {
	views, err := h.orders.ForDelivery(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSuccess(w, func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.ArrStart()
			for _, v := range views {
				encodeDeliveryView(e, v)
			}
			e.ArrEnd()
		})
	})
}

// ForRestaurant lists recent orders containing a restaurant's products.
func (h *Handler) ForRestaurant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "restaurantId")
	if err != nil {
		fail(w, r, err)
		return
	}
	views, err := h.orders.ForRestaurant(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSuccess(w, func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.ArrStart()
			for _, v := range views {
				encodeRestaurantView(e, v)
			}
			e.ArrEnd()
		})
	})
}

// UpdateStatus moves an order to the status in the request body.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderId")
	if err != nil {
		fail(w, r, err)
		return
	}
	raw, err := decodeStatus(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	status, err := order.ParseStatus(raw)
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeSuccess(w, func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
}
