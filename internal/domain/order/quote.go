package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/delifood-checkout/internal/domain/pricing"
	"github.com/xenking/delifood-checkout/internal/domain/product"
)

// Reason explains why a quote line was rejected.
type Reason string

const (
	ReasonUnavailable       Reason = "PRODUCT_UNAVAILABLE"
	ReasonInsufficientStock Reason = "INSUFFICIENT_STOCK"
)

// QuoteLine is the outcome for one cart line.
type QuoteLine struct {
	ProductID int64
	Quantity  int
	OK        bool
	Reason    Reason
	// Available is the stock left for this line, set for ReasonInsufficientStock.
	Available       int
	Name            string
	RestaurantID    int64
	UnitPrice       decimal.Decimal
	LineTotal       decimal.Decimal
	PrepTimeMinutes int
}

// Message is the user-facing reason for a rejected line.
func (l QuoteLine) Message() string {
	switch l.Reason {
	case ReasonUnavailable:
		return "Producto no disponible"
	case ReasonInsufficientStock:
		return fmt.Sprintf("Stock insuficiente (disponible: %d)", l.Available)
	default:
		return ""
	}
}

// Quote is a priced, time-gated view of a cart. It is never persisted.
type Quote struct {
	Lines []QuoteLine
	pricing.Totals
	ETAMinutes         int
	WithinServiceHours bool
	HoursMessage       string
	HasError           bool
	QuotedAt           time.Time
}

// FailedLines returns the rejected lines.
func (q Quote) FailedLines() []QuoteLine {
	var out []QuoteLine
	for _, l := range q.Lines {
		if !l.OK {
			out = append(out, l)
		}
	}
	return out
}

// ValidateItems rejects an empty cart or a non-positive quantity.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for i, it := range items {
		if it.Quantity < 1 {
			return &InvalidQuantityError{Index: i, ProductID: it.ProductID, Quantity: it.Quantity}
		}
	}
	return nil
}

// ProductIDs returns the product id of every item, in cart order.
func ProductIDs(items []Item) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	return ids
}

// BuildQuote prices items against snap at time now. Business-rule failures
// are reported inside the Quote; only malformed input returns an error.
//
// Lines naming the same product share its stock: each line sees what earlier
// accepted lines left over.
func BuildQuote(items []Item, snap product.Snapshot, now time.Time, policy pricing.Policy) (Quote, error) {
	if err := ValidateItems(items); err != nil {
		return Quote{}, err
	}

	var (
		lines     = make([]QuoteLine, 0, len(items))
		allocated = make(map[int64]int, len(items))
		subtotal  = decimal.Zero
		maxPrep   = 0
		failed    = false
	)
	for _, it := range items {
		line := QuoteLine{ProductID: it.ProductID, Quantity: it.Quantity}

		p, ok := snap.Get(it.ProductID)
		if !ok || !p.IsActive {
			line.Reason = ReasonUnavailable
			lines = append(lines, line)
			failed = true
			continue
		}

		available := max(p.Stock-allocated[p.ID], 0)
		if it.Quantity > available {
			line.Reason = ReasonInsufficientStock
			line.Available = available
			lines = append(lines, line)
			failed = true
			continue
		}
		allocated[p.ID] += it.Quantity

		line.OK = true
		line.Name = p.Name
		line.RestaurantID = p.RestaurantID
		line.UnitPrice = p.Price
		line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		line.PrepTimeMinutes = p.PrepTime()
		subtotal = subtotal.Add(line.LineTotal)
		maxPrep = max(maxPrep, line.PrepTimeMinutes)
		lines = append(lines, line)
	}

	within := policy.Hours.Contains(now)
	return Quote{
		Lines:              lines,
		Totals:             policy.Price(subtotal),
		ETAMinutes:         policy.ETA(maxPrep),
		WithinServiceHours: within,
		HoursMessage:       policy.Hours.Message(within),
		HasError:           failed || !within,
		QuotedAt:           now,
	}, nil
}
