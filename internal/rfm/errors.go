package rfm

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput         = errors.New("rfm: no orders to establish a reference date")
	ErrMalformedTimestamp = errors.New("rfm: malformed purchase timestamp")
	ErrMissingKey         = errors.New("rfm: missing identifier")
	ErrInvalidAmount      = errors.New("rfm: invalid amount")
)

// Field names reported by RowError.
const (
	FieldCustomerID        = "customer_id"
	FieldOrderID           = "order_id"
	FieldPurchaseTimestamp = "order_purchase_timestamp"
	FieldPrice             = "price"
	FieldFreightValue      = "freight_value"
	FieldMonetary          = "monetary"
)

// RowError attributes a validation failure to an input row (zero-based).
type RowError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
