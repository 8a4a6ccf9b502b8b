// Package dataset defines the tables the dashboard is built from and the
// sources that load them.
package dataset

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
)

// Table names used for logging and metrics.
const (
	TableOrders    = "orders"
	TableProducts  = "products"
	TableCustomers = "customers"
)

// ProductLine is one order item with its English category name.
type ProductLine struct {
	OrderID  string `json:"order_id"`
	Category string `json:"product_category_name_english"`
}

// CustomerProfile carries the categorical attributes of a customer order.
type CustomerProfile struct {
	CustomerID  string `json:"customer_id"`
	PaymentType string `json:"payment_type"`
	OrderStatus string `json:"order_status"`
	State       string `json:"customer_state"`
}

// Dataset is the full input of a dashboard build.
type Dataset struct {
	Orders    []rfm.OrderRecord
	Products  []ProductLine
	Customers []CustomerProfile
}

// Source loads a Dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Dataset, error)
}

// Pinger is implemented by sources backed by a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"nan":  {},
	"null": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(raw string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// ParseAmount converts a raw monetary cell. Missing and non-numeric cells
// become NaN so the aggregator rejects the row with its position.
func ParseAmount(raw string) float64 {
	if IsMissing(raw) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Clean returns raw with missing markers mapped to the empty string.
func Clean(raw string) string {
	if IsMissing(raw) {
		return ""
	}
	return strings.TrimSpace(raw)
}
