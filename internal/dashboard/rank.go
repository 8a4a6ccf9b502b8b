package dashboard

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
)

// rank returns a sorted copy of rows truncated to limit. Ties keep the
// aggregation order. Recency ranks ascending, the other keys descending.
func rank(rows []rfm.CustomerRFM, key SortKey, limit int) []rfm.CustomerRFM {
	out := slices.Clone(rows)
	if out == nil {
		out = []rfm.CustomerRFM{}
	}
	switch key {
	case SortRecency:
		slices.SortStableFunc(out, func(a, b rfm.CustomerRFM) int {
			return cmp.Compare(a.Recency, b.Recency)
		})
	case SortFrequency:
		slices.SortStableFunc(out, func(a, b rfm.CustomerRFM) int {
			return cmp.Compare(b.Frequency, a.Frequency)
		})
	case SortMonetary:
		slices.SortStableFunc(out, func(a, b rfm.CustomerRFM) int {
			return cmp.Compare(b.Monetary, a.Monetary)
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func averages(rows []rfm.CustomerRFM) Metrics {
	if len(rows) == 0 {
		return Metrics{}
	}
	var recency, frequency int
	var monetary float64
	for _, r := range rows {
		recency += r.Recency
		frequency += r.Frequency
		monetary += r.Monetary
	}
	n := float64(len(rows))
	return Metrics{
		AverageRecency:   round(float64(recency)/n, 1),
		AverageFrequency: round(float64(frequency)/n, 2),
		AverageMonetary:  round(monetary/n, 2),
	}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
