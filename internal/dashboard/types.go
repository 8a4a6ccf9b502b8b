package dashboard

import (
	"time"

	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/internal/summary"
)

// ReferenceDateLayout formats Snapshot.ReferenceDate.
const ReferenceDateLayout = time.DateOnly

// Metrics are customer-level averages rounded for display.
type Metrics struct {
	AverageRecency   float64 `json:"average_recency"`
	AverageFrequency float64 `json:"average_frequency"`
	AverageMonetary  float64 `json:"average_monetary"`
}

// Snapshot is the data behind the dashboard: headline metrics, best
// customers per dimension and categorical breakdowns.
type Snapshot struct {
	Source               string                  `json:"source"`
	GeneratedAt          time.Time               `json:"generated_at"`
	ReferenceDate        string                  `json:"reference_date"`
	Customers            int                     `json:"customers"`
	Metrics              Metrics                 `json:"metrics"`
	BestByRecency        []rfm.CustomerRFM       `json:"best_by_recency"`
	BestByFrequency      []rfm.CustomerRFM       `json:"best_by_frequency"`
	BestByMonetary       []rfm.CustomerRFM       `json:"best_by_monetary"`
	TopProductCategories []summary.CategoryCount `json:"top_product_categories"`
	PaymentTypes         []summary.CategoryCount `json:"payment_types"`
	OrderStatuses        []summary.CategoryCount `json:"order_statuses"`
	TopCustomerStates    []summary.CategoryCount `json:"top_customer_states"`

	// Rows is only filled for ad-hoc computations.
	Rows []rfm.CustomerRFM `json:"rows,omitempty"`
}

// SortKey selects the ranking applied to customer listings.
type SortKey string

const (
	SortNone      SortKey = ""
	SortRecency   SortKey = "recency"
	SortFrequency SortKey = "frequency"
	SortMonetary  SortKey = "monetary"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortRecency, SortFrequency, SortMonetary:
		return true
	}
	return false
}

// CustomerQuery filters a customer listing. Limit <= 0 returns every customer.
type CustomerQuery struct {
	Sort  SortKey
	Limit int
}
