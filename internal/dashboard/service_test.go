package dashboard

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/internal/summary"
	pkgerrors "github.com/angelmondragon/rfm-dashboard/pkg/errors"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
	"github.com/angelmondragon/rfm-dashboard/pkg/metrics"
)

type fakeSource struct {
	mu      sync.Mutex
	data    *dataset.Dataset
	err     error
	pingErr error
	calls   int
	release chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeSource) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeSource) loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func sampleDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Orders: []rfm.OrderRecord{
			{CustomerID: "C1", OrderID: "O1", PurchaseTimestamp: "2024-01-01 10:00:00", Price: 10, FreightValue: 2},
			{CustomerID: "C1", OrderID: "O2", PurchaseTimestamp: "2024-01-10 09:30:00", Price: 5, FreightValue: 1},
			{CustomerID: "C2", OrderID: "O3", PurchaseTimestamp: "2024-01-05 18:45:00", Price: 20, FreightValue: 0},
		},
		Products: []dataset.ProductLine{
			{OrderID: "O1", Category: "bed_bath_table"},
			{OrderID: "O2", Category: "health_beauty"},
			{OrderID: "O3", Category: "bed_bath_table"},
		},
		Customers: []dataset.CustomerProfile{
			{CustomerID: "C1", PaymentType: "credit_card", OrderStatus: "delivered", State: "SP"},
			{CustomerID: "C1", PaymentType: "voucher", OrderStatus: "delivered", State: "SP"},
			{CustomerID: "C2", PaymentType: "boleto", OrderStatus: "canceled", State: "RJ"},
		},
	}
}

var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, src *fakeSource, reg prometheus.Registerer) Service {
	t.Helper()
	svc, err := NewService(Options{
		Source:     src,
		Aggregator: rfm.Aggregator{Workers: 2, ParallelThreshold: 1},
		TopK:       5,
		Metrics:    metrics.NewBuildMetrics(reg),
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

var (
	c1 = rfm.CustomerRFM{CustomerID: "C1", Recency: 0, Frequency: 2, Monetary: 18}
	c2 = rfm.CustomerRFM{CustomerID: "C2", Recency: 5, Frequency: 1, Monetary: 20}
)

func TestSnapshot(t *testing.T) {
	svc := newTestService(t, &fakeSource{data: sampleDataset()}, nil)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Snapshot{
		Source:          "fake",
		GeneratedAt:     fixedNow,
		ReferenceDate:   "2024-01-10",
		Customers:       2,
		Metrics:         Metrics{AverageRecency: 2.5, AverageFrequency: 1.5, AverageMonetary: 19},
		BestByRecency:   []rfm.CustomerRFM{c1, c2},
		BestByFrequency: []rfm.CustomerRFM{c1, c2},
		BestByMonetary:  []rfm.CustomerRFM{c2, c1},
		TopProductCategories: []summary.CategoryCount{
			{Label: "bed_bath_table", Count: 2},
			{Label: "health_beauty", Count: 1},
		},
		PaymentTypes: []summary.CategoryCount{
			{Label: "credit_card", Count: 1},
			{Label: "voucher", Count: 1},
			{Label: "boleto", Count: 1},
		},
		OrderStatuses: []summary.CategoryCount{
			{Label: "delivered", Count: 2},
			{Label: "canceled", Count: 1},
		},
		TopCustomerStates: []summary.CategoryCount{
			{Label: "SP", Count: 2},
			{Label: "RJ", Count: 1},
		},
	}, snap)
}

func TestSnapshotReloadsEveryCall(t *testing.T) {
	src := &fakeSource{data: sampleDataset()}
	svc := newTestService(t, src, nil)

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = svc.Customers(context.Background(), CustomerQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads())
}

func TestSnapshotTruncatesToTopK(t *testing.T) {
	svc, err := NewService(Options{Source: &fakeSource{data: sampleDataset()}, TopK: 1})
	require.NoError(t, err)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []rfm.CustomerRFM{c1}, snap.BestByRecency)
	assert.Equal(t, []rfm.CustomerRFM{c2}, snap.BestByMonetary)
	assert.Len(t, snap.TopProductCategories, 1)
	assert.Len(t, snap.TopCustomerStates, 1)
	assert.Len(t, snap.PaymentTypes, 3)
	assert.Len(t, snap.OrderStatuses, 2)
}

func TestCustomers(t *testing.T) {
	svc := newTestService(t, &fakeSource{data: sampleDataset()}, nil)

	all, err := svc.Customers(context.Background(), CustomerQuery{})
	require.NoError(t, err)
	assert.Equal(t, []rfm.CustomerRFM{c1, c2}, all)

	byMonetary, err := svc.Customers(context.Background(), CustomerQuery{Sort: SortMonetary, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []rfm.CustomerRFM{c2}, byMonetary)

	_, err = svc.Customers(context.Background(), CustomerQuery{Sort: "age"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCustomer(t *testing.T) {
	svc := newTestService(t, &fakeSource{data: sampleDataset()}, nil)

	got, err := svc.Customer(context.Background(), "C2")
	require.NoError(t, err)
	assert.Equal(t, c2, *got)

	_, err = svc.Customer(context.Background(), "C9")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.Customer(context.Background(), " ")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCompute(t *testing.T) {
	src := &fakeSource{data: sampleDataset()}
	svc := newTestService(t, src, nil)

	snap, err := svc.Compute(context.Background(), sampleDataset().Orders, 1)
	require.NoError(t, err)
	assert.Equal(t, "request", snap.Source)
	assert.Equal(t, 2, snap.Customers)
	assert.Equal(t, []rfm.CustomerRFM{c1}, snap.BestByFrequency)
	assert.Equal(t, []rfm.CustomerRFM{c1, c2}, snap.Rows)
	assert.Empty(t, snap.TopProductCategories)
	assert.NotNil(t, snap.PaymentTypes)
	assert.Zero(t, src.loads())
}

func TestComputeErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newTestService(t, &fakeSource{}, reg)

	_, err := svc.Compute(context.Background(), nil, 0)
	assert.Equal(t, pkgerrors.CodeEmptyDataset, pkgerrors.CodeOf(err))
	assert.ErrorIs(t, err, rfm.ErrEmptyInput)

	orders := sampleDataset().Orders
	orders[1].PurchaseTimestamp = "yesterday"
	_, err = svc.Compute(context.Background(), orders, 0)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeUnprocessable, coded.Code())
	assert.Equal(t, map[string]any{
		"row":    1,
		"field":  rfm.FieldPurchaseTimestamp,
		"reason": coded.Unwrap().(*rfm.RowError).Err.Error(),
	}, coded.Details())
	assert.ErrorIs(t, err, rfm.ErrMalformedTimestamp)

	count, err := testutil.GatherAndCount(reg, "rfm_build_failure_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSourceFailureIsDependencyError(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newTestService(t, &fakeSource{err: errors.New("connection refused")}, reg)

	_, err := svc.Snapshot(context.Background())
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	count, err := testutil.GatherAndCount(reg, "rfm_build_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCanceledCallerDoesNotWait(t *testing.T) {
	src := &fakeSource{data: sampleDataset(), release: make(chan struct{})}
	svc := newTestService(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// A follow-up caller either joins the detached build or starts its own;
	// both return only once no build is left running.
	close(src.release)
	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Customers)
	assert.LessOrEqual(t, src.loads(), 2)
}

func TestPing(t *testing.T) {
	want := errors.New("down")
	svc := newTestService(t, &fakeSource{pingErr: want}, nil)

	p, ok := svc.(Pinger)
	require.True(t, ok)
	assert.Equal(t, want, p.Ping(context.Background()))
}

func TestNewServiceRequiresSource(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}
