// Package sqlsource loads the dataset from relational tables through GORM.
package sqlsource

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

const (
	ordersSQL    = `SELECT customer_id, order_id, CAST(order_purchase_timestamp AS TEXT) AS order_purchase_timestamp, price, freight_value FROM %s`
	productsSQL  = `SELECT order_id, product_category_name_english FROM %s`
	customersSQL = `SELECT customer_id, payment_type, order_status, customer_state FROM %s`
)

// Tables names the relational tables holding the dataset.
type Tables struct {
	Orders    string
	Products  string
	Customers string
}

var DefaultTables = Tables{
	Orders:    dataset.TableOrders,
	Products:  dataset.TableProducts,
	Customers: dataset.TableCustomers,
}

type database interface {
	Raw(ctx context.Context, query string, args ...any) *gorm.DB
	Ping(ctx context.Context) error
}

type Source struct {
	db     database
	tables Tables
	logg   *logger.Logger
}

func New(db database, tables Tables, logg *logger.Logger) (*Source, error) {
	if db == nil {
		return nil, fmt.Errorf("database client required")
	}
	if tables.Orders == "" || tables.Products == "" || tables.Customers == "" {
		return nil, fmt.Errorf("orders, products, and customers tables are required")
	}
	return &Source{db: db, tables: tables, logg: logg}, nil
}

func (s *Source) Name() string { return config.SourceSQL }

func (s *Source) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type orderRow struct {
	CustomerID        *string  `gorm:"column:customer_id"`
	OrderID           *string  `gorm:"column:order_id"`
	PurchaseTimestamp *string  `gorm:"column:order_purchase_timestamp"`
	Price             *float64 `gorm:"column:price"`
	FreightValue      *float64 `gorm:"column:freight_value"`
}

type productRow struct {
	OrderID  *string `gorm:"column:order_id"`
	Category *string `gorm:"column:product_category_name_english"`
}

type customerRow struct {
	CustomerID  *string `gorm:"column:customer_id"`
	PaymentType *string `gorm:"column:payment_type"`
	OrderStatus *string `gorm:"column:order_status"`
	State       *string `gorm:"column:customer_state"`
}

func (s *Source) Load(ctx context.Context) (*dataset.Dataset, error) {
	var orders []orderRow
	if err := s.db.Raw(ctx, fmt.Sprintf(ordersSQL, s.tables.Orders)).Scan(&orders).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", dataset.TableOrders, err)
	}
	var products []productRow
	if err := s.db.Raw(ctx, fmt.Sprintf(productsSQL, s.tables.Products)).Scan(&products).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", dataset.TableProducts, err)
	}
	var customers []customerRow
	if err := s.db.Raw(ctx, fmt.Sprintf(customersSQL, s.tables.Customers)).Scan(&customers).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", dataset.TableCustomers, err)
	}

	ds := &dataset.Dataset{
		Orders:    make([]rfm.OrderRecord, 0, len(orders)),
		Products:  make([]dataset.ProductLine, 0, len(products)),
		Customers: make([]dataset.CustomerProfile, 0, len(customers)),
	}
	for _, r := range orders {
		ds.Orders = append(ds.Orders, rfm.OrderRecord{
			CustomerID:        deref(r.CustomerID),
			OrderID:           deref(r.OrderID),
			PurchaseTimestamp: deref(r.PurchaseTimestamp),
			Price:             amount(r.Price),
			FreightValue:      amount(r.FreightValue),
		})
	}
	for _, r := range products {
		ds.Products = append(ds.Products, dataset.ProductLine{
			OrderID:  deref(r.OrderID),
			Category: deref(r.Category),
		})
	}
	for _, r := range customers {
		ds.Customers = append(ds.Customers, dataset.CustomerProfile{
			CustomerID:  deref(r.CustomerID),
			PaymentType: deref(r.PaymentType),
			OrderStatus: deref(r.OrderStatus),
			State:       deref(r.State),
		})
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"orders":    len(ds.Orders),
			"products":  len(ds.Products),
			"customers": len(ds.Customers),
		})
		s.logg.Info(ctx, "sql dataset loaded")
	}
	return ds, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return dataset.Clean(*v)
}

func amount(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
