// Package rfm derives per-customer recency, frequency and monetary metrics
// from order-line rows.
package rfm

// OrderRecord is one order line. A missing amount is carried as NaN and
// rejected by Compute.
type OrderRecord struct {
	CustomerID        string  `json:"customer_id"`
	OrderID           string  `json:"order_id"`
	PurchaseTimestamp string  `json:"order_purchase_timestamp"`
	Price             float64 `json:"price"`
	FreightValue      float64 `json:"freight_value"`
}

// CustomerRFM is the aggregated row for one customer.
type CustomerRFM struct {
	CustomerID string  `json:"customer_id"`
	Recency    int     `json:"recency"`
	Frequency  int     `json:"frequency"`
	Monetary   float64 `json:"monetary"`
}

// TotalPrice is the line amount including freight.
func TotalPrice(o OrderRecord) float64 {
	return o.Price + o.FreightValue
}
