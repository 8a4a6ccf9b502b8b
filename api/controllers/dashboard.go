package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/rfm-dashboard/api/responses"
	"github.com/angelmondragon/rfm-dashboard/api/validators"
	"github.com/angelmondragon/rfm-dashboard/internal/dashboard"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

const maxListLimit = 10000

type customerList struct {
	Customers []rfm.CustomerRFM `json:"customers"`
	Count     int               `json:"count"`
}

func Dashboard(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		snap, err := svc.Snapshot(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// Customers lists RFM rows, optionally ranked with ?sort= and cut with ?limit=.
func Customers(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxListLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sort, err := validators.ParseQueryEnum(r, "sort",
			string(dashboard.SortRecency), string(dashboard.SortFrequency), string(dashboard.SortMonetary))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := svc.Customers(ctx, dashboard.CustomerQuery{Sort: dashboard.SortKey(sort), Limit: limit})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, customerList{Customers: rows, Count: len(rows)})
	}
}

func Customer(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		row, err := svc.Customer(ctx, chi.URLParam(r, "customerID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}
