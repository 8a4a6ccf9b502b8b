package rfm

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// row is a validated order line.
type row struct {
	index       int
	customerID  string
	orderID     string
	purchasedAt time.Time
	total       float64
}

// accumulator holds the partial aggregate of one customer. Partial
// aggregates of the same customer combine with merge.
type accumulator struct {
	customerID string
	first      int
	last       time.Time
	orders     map[string]struct{}
	monetary   float64
}

// Compute aggregates orders into one CustomerRFM per customer, in order of
// each customer's first appearance. The reference date is the calendar date
// of the latest purchase in the whole input and is fixed before any
// per-customer recency is derived.
func Compute(orders []OrderRecord) ([]CustomerRFM, error) {
	rows, reference, err := prepare(orders)
	if err != nil {
		return nil, err
	}
	return finalize(aggregate(rows), reference)
}

// ReferenceDate validates orders and returns the calendar date of the latest
// purchase, as midnight UTC.
func ReferenceDate(orders []OrderRecord) (time.Time, error) {
	_, reference, err := prepare(orders)
	return reference, err
}

// prepare validates every row and reduces the global reference date.
func prepare(orders []OrderRecord) ([]row, time.Time, error) {
	if len(orders) == 0 {
		return nil, time.Time{}, ErrEmptyInput
	}

	rows := make([]row, 0, len(orders))
	var latest time.Time
	for i, o := range orders {
		r, err := validate(i, o)
		if err != nil {
			return nil, time.Time{}, err
		}
		if i == 0 || r.purchasedAt.After(latest) {
			latest = r.purchasedAt
		}
		rows = append(rows, r)
	}
	return rows, civilDate(latest), nil
}

// Identifiers group verbatim; surrounding whitespace only matters for the
// blank check.
func validate(i int, o OrderRecord) (row, error) {
	if strings.TrimSpace(o.CustomerID) == "" {
		return row{}, &RowError{Row: i, Field: FieldCustomerID, Err: ErrMissingKey}
	}
	if strings.TrimSpace(o.OrderID) == "" {
		return row{}, &RowError{Row: i, Field: FieldOrderID, Err: ErrMissingKey}
	}
	purchasedAt, err := ParseTimestamp(o.PurchaseTimestamp)
	if err != nil {
		return row{}, &RowError{Row: i, Field: FieldPurchaseTimestamp, Err: err}
	}
	if !validAmount(o.Price) {
		return row{}, &RowError{Row: i, Field: FieldPrice, Err: ErrInvalidAmount}
	}
	if !validAmount(o.FreightValue) {
		return row{}, &RowError{Row: i, Field: FieldFreightValue, Err: ErrInvalidAmount}
	}
	total := TotalPrice(o)
	if math.IsInf(total, 0) {
		return row{}, &RowError{Row: i, Field: FieldMonetary, Err: ErrInvalidAmount}
	}
	return row{
		index:       i,
		customerID:  o.CustomerID,
		orderID:     o.OrderID,
		purchasedAt: purchasedAt,
		total:       total,
	}, nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// aggregate groups rows by customer. Monetary sums follow input row order.
func aggregate(rows []row) []*accumulator {
	byCustomer := make(map[string]*accumulator)
	ordered := make([]*accumulator, 0)
	for _, r := range rows {
		acc, ok := byCustomer[r.customerID]
		if !ok {
			acc = &accumulator{
				customerID: r.customerID,
				first:      r.index,
				last:       r.purchasedAt,
				orders:     make(map[string]struct{}),
			}
			byCustomer[r.customerID] = acc
			ordered = append(ordered, acc)
		}
		if r.purchasedAt.After(acc.last) {
			acc.last = r.purchasedAt
		}
		acc.orders[r.orderID] = struct{}{}
		acc.monetary += r.total
	}
	return ordered
}

func (a *accumulator) merge(b *accumulator) {
	if b.first < a.first {
		a.first = b.first
	}
	if b.last.After(a.last) {
		a.last = b.last
	}
	for id := range b.orders {
		a.orders[id] = struct{}{}
	}
	a.monetary += b.monetary
}

// combine merges partial aggregates from independent partitions and restores
// first-appearance order.
func combine(parts [][]*accumulator) []*accumulator {
	byCustomer := make(map[string]*accumulator)
	merged := make([]*accumulator, 0)
	for _, part := range parts {
		for _, acc := range part {
			if existing, ok := byCustomer[acc.customerID]; ok {
				existing.merge(acc)
				continue
			}
			byCustomer[acc.customerID] = acc
			merged = append(merged, acc)
		}
	}
	slices.SortFunc(merged, func(a, b *accumulator) int {
		return a.first - b.first
	})
	return merged
}

// finalize fails when a customer's summed monetary value is no longer
// finite. The error points at the customer's first row.
func finalize(accs []*accumulator, reference time.Time) ([]CustomerRFM, error) {
	out := make([]CustomerRFM, 0, len(accs))
	for _, acc := range accs {
		if math.IsInf(acc.monetary, 0) {
			return nil, &RowError{
				Row:   acc.first,
				Field: FieldMonetary,
				Err:   fmt.Errorf("%w: monetary total of customer %q overflows", ErrInvalidAmount, acc.customerID),
			}
		}
		out = append(out, CustomerRFM{
			CustomerID: acc.customerID,
			Recency:    daysBetween(civilDate(acc.last), reference),
			Frequency:  len(acc.orders),
			Monetary:   acc.monetary,
		})
	}
	return out, nil
}
