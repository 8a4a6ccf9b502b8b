package rfm

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// Aggregator computes RFM rows, optionally partitioning large inputs by
// customer across Workers goroutines. Output is identical to Compute.
type Aggregator struct {
	Workers           int
	ParallelThreshold int
}

// Result is an aggregation together with the reference date it was
// computed against.
type Result struct {
	ReferenceDate time.Time
	Customers     []CustomerRFM
}

func (a Aggregator) Compute(ctx context.Context, orders []OrderRecord) ([]CustomerRFM, error) {
	res, err := a.Run(ctx, orders)
	if err != nil {
		return nil, err
	}
	return res.Customers, nil
}

// Run aggregates orders and also reports the reference date.
func (a Aggregator) Run(ctx context.Context, orders []OrderRecord) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, reference, err := prepare(orders)
	if err != nil {
		return nil, err
	}
	if a.Workers <= 1 || len(rows) < a.ParallelThreshold {
		return result(aggregate(rows), reference)
	}

	partitions := partition(rows, a.Workers)
	results := make([][]*accumulator, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	for i := range partitions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = aggregate(partitions[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result(combine(results), reference)
}

func result(accs []*accumulator, reference time.Time) (*Result, error) {
	customers, err := finalize(accs, reference)
	if err != nil {
		return nil, err
	}
	return &Result{ReferenceDate: reference, Customers: customers}, nil
}

// partition spreads rows by customer hash. Every row of a customer lands in
// the same partition, in input order.
func partition(rows []row, n int) [][]row {
	parts := make([][]row, n)
	for _, r := range rows {
		idx := xxhash.Sum64String(r.customerID) % uint64(n)
		parts[idx] = append(parts[idx], r)
	}
	return parts
}
