package controllers

import (
	"math"
	"net/http"

	"github.com/angelmondragon/rfm-dashboard/api/responses"
	"github.com/angelmondragon/rfm-dashboard/api/validators"
	"github.com/angelmondragon/rfm-dashboard/internal/dashboard"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

type orderPayload struct {
	CustomerID        string   `json:"customer_id"`
	OrderID           string   `json:"order_id"`
	PurchaseTimestamp string   `json:"order_purchase_timestamp"`
	Price             *float64 `json:"price"`
	FreightValue      *float64 `json:"freight_value"`
}

// maxComputeBodyBytes fits the largest accepted order batch.
const maxComputeBodyBytes int64 = 128 << 20

type computeRequest struct {
	Orders []orderPayload `json:"orders" validate:"required,max=500000"`
	Top    int            `json:"top" validate:"min=0,max=100"`
}

// ComputeRFM aggregates the posted order lines without touching the
// configured dataset source.
func ComputeRFM(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req computeRequest
		if err := validators.DecodeJSONBodyLimit(r, &req, maxComputeBodyBytes); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orders := make([]rfm.OrderRecord, 0, len(req.Orders))
		for _, o := range req.Orders {
			orders = append(orders, rfm.OrderRecord{
				CustomerID:        o.CustomerID,
				OrderID:           o.OrderID,
				PurchaseTimestamp: o.PurchaseTimestamp,
				Price:             amount(o.Price),
				FreightValue:      amount(o.FreightValue),
			})
		}

		snap, err := svc.Compute(ctx, orders, req.Top)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func amount(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
