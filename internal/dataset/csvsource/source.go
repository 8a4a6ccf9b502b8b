// Package csvsource loads the dataset from CSV exports.
package csvsource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

var (
	orderColumns    = []string{"customer_id", "order_id", "order_purchase_timestamp", "price", "freight_value"}
	productColumns  = []string{"order_id", "product_category_name_english"}
	customerColumns = []string{"customer_id", "payment_type", "order_status", "customer_state"}
)

// Files names the three CSV exports inside the source directory.
type Files struct {
	Orders    string
	Products  string
	Customers string
}

type Source struct {
	fsys  fs.FS
	files Files
	logg  *logger.Logger
}

// New reads the files named in cfg from cfg.Dir.
func New(cfg config.DatasetConfig, logg *logger.Logger) (*Source, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("dataset directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset path %q is not a directory", dir)
	}
	return NewFS(os.DirFS(dir), Files{
		Orders:    cfg.OrdersFile,
		Products:  cfg.ProductsFile,
		Customers: cfg.CustomersFile,
	}, logg), nil
}

// NewFS reads files from fsys.
func NewFS(fsys fs.FS, files Files, logg *logger.Logger) *Source {
	return &Source{fsys: fsys, files: files, logg: logg}
}

func (s *Source) Name() string { return config.SourceCSV }

func (s *Source) Load(ctx context.Context) (*dataset.Dataset, error) {
	orders, err := s.readTable(ctx, s.files.Orders, orderColumns)
	if err != nil {
		return nil, err
	}
	products, err := s.readTable(ctx, s.files.Products, productColumns)
	if err != nil {
		return nil, err
	}
	customers, err := s.readTable(ctx, s.files.Customers, customerColumns)
	if err != nil {
		return nil, err
	}

	ds := &dataset.Dataset{
		Orders:    make([]rfm.OrderRecord, 0, orders.rows),
		Products:  make([]dataset.ProductLine, 0, products.rows),
		Customers: make([]dataset.CustomerProfile, 0, customers.rows),
	}
	for i := range orders.rows {
		ds.Orders = append(ds.Orders, rfm.OrderRecord{
			CustomerID:        dataset.Clean(orders.cell("customer_id", i)),
			OrderID:           dataset.Clean(orders.cell("order_id", i)),
			PurchaseTimestamp: dataset.Clean(orders.cell("order_purchase_timestamp", i)),
			Price:             dataset.ParseAmount(orders.cell("price", i)),
			FreightValue:      dataset.ParseAmount(orders.cell("freight_value", i)),
		})
	}
	for i := range products.rows {
		ds.Products = append(ds.Products, dataset.ProductLine{
			OrderID:  dataset.Clean(products.cell("order_id", i)),
			Category: dataset.Clean(products.cell("product_category_name_english", i)),
		})
	}
	for i := range customers.rows {
		ds.Customers = append(ds.Customers, dataset.CustomerProfile{
			CustomerID:  dataset.Clean(customers.cell("customer_id", i)),
			PaymentType: dataset.Clean(customers.cell("payment_type", i)),
			OrderStatus: dataset.Clean(customers.cell("order_status", i)),
			State:       dataset.Clean(customers.cell("customer_state", i)),
		})
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"orders":    len(ds.Orders),
			"products":  len(ds.Products),
			"customers": len(ds.Customers),
		})
		s.logg.Info(ctx, "csv dataset loaded")
	}
	return ds, nil
}

type table struct {
	rows    int
	columns map[string][]string
}

func (t table) cell(column string, i int) string {
	return t.columns[column][i]
}

func (s *Source) readTable(ctx context.Context, name string, required []string) (t table, err error) {
	if err := ctx.Err(); err != nil {
		return table{}, err
	}
	f, err := s.fsys.Open(name)
	if err != nil {
		return table{}, fmt.Errorf("opening %s: %w", name, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return table{}, fmt.Errorf("reading %s: %w", name, df.Err)
	}

	present := make(map[string]struct{}, len(df.Names()))
	for _, col := range df.Names() {
		present[col] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return table{}, fmt.Errorf("%s: missing columns %s", name, strings.Join(missing, ", "))
	}

	t = table{rows: df.Nrow(), columns: make(map[string][]string, len(required))}
	for _, col := range required {
		t.columns[col] = df.Col(col).Records()
	}
	return t, nil
}
