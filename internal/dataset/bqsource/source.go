// Package bqsource loads the dataset from BigQuery tables.
package bqsource

import (
	"context"
	"errors"
	"fmt"
	"math"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/bigquery"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

const (
	ordersSQL = `
SELECT
  CAST(customer_id AS STRING) AS customer_id,
  CAST(order_id AS STRING) AS order_id,
  CAST(order_purchase_timestamp AS STRING) AS order_purchase_timestamp,
  SAFE_CAST(price AS FLOAT64) AS price,
  SAFE_CAST(freight_value AS FLOAT64) AS freight_value
FROM %s
`

	productsSQL = `
SELECT
  CAST(order_id AS STRING) AS order_id,
  CAST(product_category_name_english AS STRING) AS product_category_name_english
FROM %s
`

	customersSQL = `
SELECT
  CAST(customer_id AS STRING) AS customer_id,
  CAST(payment_type AS STRING) AS payment_type,
  CAST(order_status AS STRING) AS order_status,
  CAST(customer_state AS STRING) AS customer_state
FROM %s
`
)

type querier interface {
	Read(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (bigquery.RowReader, error)
	TableRef(table string) string
	Ping(ctx context.Context) error
}

type Source struct {
	client querier
	tables config.BigQueryConfig
	logg   *logger.Logger
}

func New(client *bigquery.Client, tables config.BigQueryConfig, logg *logger.Logger) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	return newSource(client, tables, logg), nil
}

func newSource(client querier, tables config.BigQueryConfig, logg *logger.Logger) *Source {
	return &Source{client: client, tables: tables, logg: logg}
}

func (s *Source) Name() string { return config.SourceBigQuery }

func (s *Source) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

type orderRow struct {
	CustomerID        cloudbigquery.NullString  `bigquery:"customer_id"`
	OrderID           cloudbigquery.NullString  `bigquery:"order_id"`
	PurchaseTimestamp cloudbigquery.NullString  `bigquery:"order_purchase_timestamp"`
	Price             cloudbigquery.NullFloat64 `bigquery:"price"`
	FreightValue      cloudbigquery.NullFloat64 `bigquery:"freight_value"`
}

type productRow struct {
	OrderID  cloudbigquery.NullString `bigquery:"order_id"`
	Category cloudbigquery.NullString `bigquery:"product_category_name_english"`
}

type customerRow struct {
	CustomerID  cloudbigquery.NullString `bigquery:"customer_id"`
	PaymentType cloudbigquery.NullString `bigquery:"payment_type"`
	OrderStatus cloudbigquery.NullString `bigquery:"order_status"`
	State       cloudbigquery.NullString `bigquery:"customer_state"`
}

func (s *Source) Load(ctx context.Context) (*dataset.Dataset, error) {
	ds := &dataset.Dataset{}

	err := readAll(ctx, s.client, fmt.Sprintf(ordersSQL, s.client.TableRef(s.tables.OrdersTable)), func(r *orderRow) {
		ds.Orders = append(ds.Orders, rfm.OrderRecord{
			CustomerID:        r.CustomerID.StringVal,
			OrderID:           r.OrderID.StringVal,
			PurchaseTimestamp: r.PurchaseTimestamp.StringVal,
			Price:             nullAmount(r.Price),
			FreightValue:      nullAmount(r.FreightValue),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dataset.TableOrders, err)
	}

	err = readAll(ctx, s.client, fmt.Sprintf(productsSQL, s.client.TableRef(s.tables.ProductsTable)), func(r *productRow) {
		ds.Products = append(ds.Products, dataset.ProductLine{
			OrderID:  r.OrderID.StringVal,
			Category: r.Category.StringVal,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dataset.TableProducts, err)
	}

	err = readAll(ctx, s.client, fmt.Sprintf(customersSQL, s.client.TableRef(s.tables.CustomersTable)), func(r *customerRow) {
		ds.Customers = append(ds.Customers, dataset.CustomerProfile{
			CustomerID:  r.CustomerID.StringVal,
			PaymentType: r.PaymentType.StringVal,
			OrderStatus: r.OrderStatus.StringVal,
			State:       r.State.StringVal,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dataset.TableCustomers, err)
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"orders":    len(ds.Orders),
			"products":  len(ds.Products),
			"customers": len(ds.Customers),
		})
		s.logg.Info(ctx, "bigquery dataset loaded")
	}
	return ds, nil
}

// readAll drains the query result, handing each decoded row to fn.
func readAll[T any](ctx context.Context, client querier, sql string, fn func(*T)) error {
	rows, err := client.Read(ctx, sql, nil)
	if err != nil {
		return err
	}
	for {
		var row T
		if err := rows.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return fmt.Errorf("reading row: %w", err)
		}
		fn(&row)
	}
}

func nullAmount(v cloudbigquery.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
