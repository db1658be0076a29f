// Package pricing holds the delivery fee, ETA and service-hours rules applied
// to every quote.
package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Default policy values.
const (
	DefaultOpenHour      = 9
	DefaultCloseHour     = 22
	DefaultBufferMinutes = 20
	defaultFreeThreshold = 500
	defaultFlatFee       = 40
)

// ErrInvalidHours is returned by ServiceHours.Validate for an unusable window.
var ErrInvalidHours = errors.New("invalid service hours")

// ServiceHours is a fixed daily window, inclusive on both ends, expressed as
// wall-clock hours in Location. A time at 22:59 is inside a window closing at
// 22 because only the hour component is compared.
type ServiceHours struct {
	Open     int
	Close    int
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (h ServiceHours) Contains(t time.Time) bool {
	if h.Location != nil {
		t = t.In(h.Location)
	}
	hour := t.Hour()
	return hour >= h.Open && hour <= h.Close
}

// Validate checks the window bounds.
func (h ServiceHours) Validate() error {
	if h.Open < 0 || h.Open > 23 || h.Close < 0 || h.Close > 23 {
		return errors.Wrapf(ErrInvalidHours, "hours must be within 0..23, got %d..%d", h.Open, h.Close)
	}
	if h.Open > h.Close {
		return errors.Wrapf(ErrInvalidHours, "open hour %d is after close hour %d", h.Open, h.Close)
	}
	return nil
}

// Message is the user-facing description of the service window state.
func (h ServiceHours) Message(within bool) string {
	if within {
		return "Dentro del horario de servicio"
	}
	return "Fuera del horario de servicio (" + clock(h.Open) + "–" + clock(h.Close) + ")"
}

func clock(hour int) string {
	return time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:04")
}

// Policy prices a validated cart.
type Policy struct {
	// FreeDeliveryThreshold is the subtotal from which delivery is free.
	FreeDeliveryThreshold decimal.Decimal
	// FlatDeliveryFee is charged below the threshold.
	FlatDeliveryFee decimal.Decimal
	// BufferMinutes is added to the slowest preparation time.
	BufferMinutes int
	Hours         ServiceHours
}

// DefaultPolicy returns the standard policy in the given location.
func DefaultPolicy(loc *time.Location) Policy {
	return Policy{
		FreeDeliveryThreshold: decimal.NewFromInt(defaultFreeThreshold),
		FlatDeliveryFee:       decimal.NewFromInt(defaultFlatFee),
		BufferMinutes:         DefaultBufferMinutes,
		Hours: ServiceHours{
			Open:     DefaultOpenHour,
			Close:    DefaultCloseHour,
			Location: loc,
		},
	}
}

// DeliveryFee returns zero for an empty subtotal or one at or above the free
// threshold, and the flat fee otherwise.
func (p Policy) DeliveryFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() || subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return p.FlatDeliveryFee
}

// ETA returns the estimated minutes to delivery given the slowest
// preparation time among accepted lines.
func (p Policy) ETA(maxPrepMinutes int) int {
	return maxPrepMinutes + p.BufferMinutes
}

// Totals is the money breakdown of a quote.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Price computes the totals for a subtotal. Total is always subtotal plus fee.
func (p Policy) Price(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	fee := p.DeliveryFee(subtotal).Round(2)
	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}
