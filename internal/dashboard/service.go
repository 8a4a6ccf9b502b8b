// Package dashboard assembles RFM snapshots from a dataset source.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/internal/summary"
	pkgerrors "github.com/angelmondragon/rfm-dashboard/pkg/errors"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
	"github.com/angelmondragon/rfm-dashboard/pkg/metrics"
)

const (
	stageLoad      = "load"
	stageAggregate = "aggregate"
	stageSummarize = "summarize"

	defaultTopK = 5
	loadKey     = "dataset"
)

// Service exposes dashboard data. Every call reads the source again; only
// concurrent loads are shared.
type Service interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	Customers(ctx context.Context, q CustomerQuery) ([]rfm.CustomerRFM, error)
	Customer(ctx context.Context, customerID string) (*rfm.CustomerRFM, error)
	Compute(ctx context.Context, orders []rfm.OrderRecord, k int) (*Snapshot, error)
}

// Pinger is implemented by services whose source can be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewService.
type Options struct {
	Source      dataset.Source
	Aggregator  rfm.Aggregator
	TopK        int
	LoadTimeout time.Duration
	Metrics     *metrics.BuildMetrics
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	source  dataset.Source
	agg     rfm.Aggregator
	topK    int
	timeout time.Duration
	metrics *metrics.BuildMetrics
	logg    *logger.Logger
	now     func() time.Time
	loads   singleflight.Group
}

// built is one load of the source and its aggregation.
type built struct {
	data   *dataset.Dataset
	result *rfm.Result
}

// NewService wires a dashboard service over the provided source.
func NewService(opts Options) (Service, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("dataset source required")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		source:  opts.Source,
		agg:     opts.Aggregator,
		topK:    topK,
		timeout: opts.LoadTimeout,
		metrics: opts.Metrics,
		logg:    opts.Logger,
		now:     now,
	}, nil
}

func (s *service) Snapshot(ctx context.Context) (*Snapshot, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, s.source.Name(), b, s.topK), nil
}

func (s *service) Customers(ctx context.Context, q CustomerQuery) ([]rfm.CustomerRFM, error) {
	if !q.Sort.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort key").
			WithDetails(map[string]any{"sort": string(q.Sort)})
	}
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return rank(b.result.Customers, q.Sort, q.Limit), nil
}

func (s *service) Customer(ctx context.Context, customerID string) (*rfm.CustomerRFM, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range b.result.Customers {
		if c.CustomerID == customerID {
			found := c
			return &found, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
}

func (s *service) Compute(ctx context.Context, orders []rfm.OrderRecord, k int) (*Snapshot, error) {
	if k <= 0 {
		k = s.topK
	}
	ctx = s.withSource(ctx, "request")
	result, err := s.aggregate(ctx, orders)
	if err != nil {
		return nil, err
	}
	b := &built{data: &dataset.Dataset{Orders: orders}, result: result}
	snap := s.snapshot(ctx, "request", b, k)
	snap.Rows = result.Customers
	return snap, nil
}

func (s *service) Ping(ctx context.Context) error {
	if p, ok := s.source.(dataset.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// load reads and aggregates the source. Callers arriving while a load is in
// flight share its outcome.
func (s *service) load(ctx context.Context) (*built, error) {
	ch := s.loads.DoChan(loadKey, func() (any, error) {
		return s.build(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*built), nil
	}
}

func (s *service) build(ctx context.Context) (*built, error) {
	ctx = s.withSource(ctx, s.source.Name())
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	data, err := s.source.Load(ctx)
	s.metrics.ObserveStage(stageLoad, time.Since(started))
	if err != nil {
		s.metrics.IncFailure(reasonLoad)
		if s.logg != nil {
			s.logg.Error(ctx, "dataset load failed", err)
		}
		return nil, classifyLoad(err)
	}
	s.metrics.AddRows(dataset.TableOrders, len(data.Orders))
	s.metrics.AddRows(dataset.TableProducts, len(data.Products))
	s.metrics.AddRows(dataset.TableCustomers, len(data.Customers))

	result, err := s.aggregate(ctx, data.Orders)
	if err != nil {
		return nil, err
	}
	return &built{data: data, result: result}, nil
}

func (s *service) aggregate(ctx context.Context, orders []rfm.OrderRecord) (*rfm.Result, error) {
	started := time.Now()
	result, err := s.agg.Run(ctx, orders)
	s.metrics.ObserveStage(stageAggregate, time.Since(started))
	if err != nil {
		reason, coded := classifyAggregation(err)
		s.metrics.IncFailure(reason)
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "rfm aggregation failed")
		}
		return nil, coded
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"orders":      len(orders),
			"customers":   len(result.Customers),
			"duration_ms": time.Since(started).Milliseconds(),
		}), "rfm aggregation complete")
	}
	return result, nil
}

func (s *service) snapshot(ctx context.Context, source string, b *built, k int) *Snapshot {
	started := time.Now()
	defer func() { s.metrics.ObserveStage(stageSummarize, time.Since(started)) }()

	customers := b.result.Customers
	snap := &Snapshot{
		Source:          source,
		GeneratedAt:     s.now().UTC(),
		ReferenceDate:   b.result.ReferenceDate.Format(ReferenceDateLayout),
		Customers:       len(customers),
		Metrics:         averages(customers),
		BestByRecency:   rank(customers, SortRecency, k),
		BestByFrequency: rank(customers, SortFrequency, k),
		BestByMonetary:  rank(customers, SortMonetary, k),
		TopProductCategories: summary.TopBy(b.data.Products,
			func(p dataset.ProductLine) string { return p.Category },
			func(p dataset.ProductLine) string { return p.OrderID },
			k),
		PaymentTypes: summary.Top(b.data.Customers,
			func(c dataset.CustomerProfile) string { return c.PaymentType }, 0),
		OrderStatuses: summary.Top(b.data.Customers,
			func(c dataset.CustomerProfile) string { return c.OrderStatus }, 0),
		TopCustomerStates: summary.Top(b.data.Customers,
			func(c dataset.CustomerProfile) string { return c.State }, k),
	}
	if s.logg != nil {
		s.logg.Debug(ctx, "dashboard snapshot assembled")
	}
	return snap
}

func (s *service) withSource(ctx context.Context, source string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithDatasetSource(ctx, source)
}
