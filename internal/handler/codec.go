package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/delifood-checkout/internal/domain/order"
	"github.com/xenking/delifood-checkout/internal/domain/pricing"
	"github.com/xenking/delifood-checkout/internal/domain/product"
)

// errMalformed marks a request that could not be decoded.
var errMalformed = errors.New("malformed request")

// cartRequest is the body of the preview and confirm endpoints.
type cartRequest struct {
	UserID int64
	Items  []order.Item
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return nil, errors.Wrap(errMalformed, "body must be a JSON object")
	}
	return d, nil
}

func decodeCart(w http.ResponseWriter, r *http.Request) (cartRequest, error) {
	d, err := readBody(w, r)
	if err != nil {
		return cartRequest{}, err
	}

	var req cartRequest
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "userId":
			v, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "userId")
			}
			req.UserID = v
			return nil
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return errors.Wrapf(err, "items[%d]", len(req.Items))
				}
				req.Items = append(req.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return cartRequest{}, errors.Wrap(errMalformed, err.Error())
	}
	return req, nil
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "productId")
			}
			it.ProductID = v
		case "quantity":
			v, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			it.Quantity = int(v)
		default:
			return d.Skip()
		}
		return nil
	})
	return it, err
}

// decodeID reads an integer sent either as a JSON number or as a numeric
// string. Null decodes to zero.
func decodeID(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return d.Int64()
	}
}

func decodeStatus(w http.ResponseWriter, r *http.Request) (string, error) {
	d, err := readBody(w, r)
	if err != nil {
		return "", err
	}
	var status string
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		v, err := d.Str()
		status = v
		return err
	})
	if err != nil {
		return "", errors.Wrap(errMalformed, err.Error())
	}
	return status, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.Wrapf(errMalformed, "invalid %s", name)
	}
	return v, nil
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.ObjStart()
	e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, t.Subtotal) })
	e.Field("deliveryFee", func(e *jx.Encoder) { encodeMoney(e, t.DeliveryFee) })
	e.Field("total", func(e *jx.Encoder) { encodeMoney(e, t.Total) })
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, lines []order.QuoteLine) {
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.Field("productId", func(e *jx.Encoder) { e.Int64(l.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("ok", func(e *jx.Encoder) { e.Bool(l.OK) })
		if l.OK {
			e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
			e.Field("restaurantId", func(e *jx.Encoder) { e.Int64(l.RestaurantID) })
			e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, l.UnitPrice) })
			e.Field("lineTotal", func(e *jx.Encoder) { encodeMoney(e, l.LineTotal) })
			e.Field("preparationTime", func(e *jx.Encoder) { e.Int(l.PrepTimeMinutes) })
		} else {
			e.Field("reasonCode", func(e *jx.Encoder) { e.Str(string(l.Reason)) })
			e.Field("reason", func(e *jx.Encoder) { e.Str(l.Message()) })
			if l.Reason == order.ReasonInsufficientStock {
				e.Field("available", func(e *jx.Encoder) { e.Int(l.Available) })
			}
		}
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeHorario(e *jx.Encoder, q order.Quote) {
	e.ObjStart()
	e.Field("dentroHorario", func(e *jx.Encoder) { e.Bool(q.WithinServiceHours) })
	e.Field("message", func(e *jx.Encoder) { e.Str(q.HoursMessage) })
	e.ObjEnd()
}

// encodeQuoteFields writes the cart, totals, ETA and service-hours fields
// shared by preview responses and validation failures.
func encodeQuoteFields(e *jx.Encoder, q order.Quote) {
	e.Field("hasError", func(e *jx.Encoder) { e.Bool(q.HasError) })
	e.Field("cart", func(e *jx.Encoder) { encodeCart(e, q.Lines) })
	e.Field("totals", func(e *jx.Encoder) { encodeTotals(e, q.Totals) })
	e.Field("etaMinutes", func(e *jx.Encoder) { e.Int(q.ETAMinutes) })
	e.Field("horario", func(e *jx.Encoder) { encodeHorario(e, q) })
}

func encodeOrderHeader(e *jx.Encoder, o *order.Order) {
	e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
	e.Field("userId", func(e *jx.Encoder) { e.Int64(o.UserID) })
	e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal()) })
	e.Field("deliveryFee", func(e *jx.Encoder) { encodeMoney(e, o.DeliveryFee) })
	e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
	e.Field("etaMinutes", func(e *jx.Encoder) { e.Int(o.ETAMinutes) })
	e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	e.Field("statusLabel", func(e *jx.Encoder) { e.Str(o.Status.Label()) })
	e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
	e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	encodeOrderHeader(e, o)
	e.Field("items", func(e *jx.Encoder) {
		e.ArrStart()
		for _, l := range o.Lines {
			e.ObjStart()
			e.Field("productId", func(e *jx.Encoder) { e.Int64(l.ProductID) })
			e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, l.UnitPrice) })
			e.Field("lineTotal", func(e *jx.Encoder) { encodeMoney(e, l.Total()) })
			e.ObjEnd()
		}
		e.ArrEnd()
	})
	e.ObjEnd()
}

func encodeClient(e *jx.Encoder, c order.Client) {
	e.Field("clientName", func(e *jx.Encoder) { e.Str(c.Name) })
	e.Field("clientUsername", func(e *jx.Encoder) { e.Str(c.Username) })
}

func encodeDeliveryView(e *jx.Encoder, v order.DeliveryView) {
	e.ObjStart()
	encodeOrderHeader(e, &v.Order)
	encodeClient(e, v.Client)
	if v.RestaurantID != 0 {
		e.Field("restaurantId", func(e *jx.Encoder) { e.Int64(v.RestaurantID) })
	} else {
		e.Field("restaurantId", func(e *jx.Encoder) { e.Null() })
	}
	e.Field("restaurantName", func(e *jx.Encoder) { e.Str(v.RestaurantName) })
	e.Field("restaurantUsername", func(e *jx.Encoder) { e.Str(v.RestaurantUsername) })
	e.Field("restaurantCount", func(e *jx.Encoder) { e.Int(v.RestaurantCount) })
	e.Field("multiRestaurant", func(e *jx.Encoder) { e.Bool(v.MultiRestaurant()) })
	e.ObjEnd()
}

func encodeRestaurantView(e *jx.Encoder, v order.RestaurantView) {
	e.ObjStart()
	encodeOrderHeader(e, &v.Order)
	encodeClient(e, v.Client)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
	e.Field("restaurantId", func(e *jx.Encoder) { e.Int64(p.RestaurantID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
	e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
	e.Field("preparationTime", func(e *jx.Encoder) { e.Int(p.PrepTime()) })
	e.Field("isActive", func(e *jx.Encoder) { e.Bool(p.IsActive) })
	e.ObjEnd()
}
