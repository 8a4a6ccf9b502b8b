// Package sources builds the dataset source selected by configuration.
package sources

import (
	"context"
	"fmt"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/dataset/bqsource"
	"github.com/angelmondragon/rfm-dashboard/internal/dataset/csvsource"
	"github.com/angelmondragon/rfm-dashboard/internal/dataset/sqlsource"
	"github.com/angelmondragon/rfm-dashboard/pkg/bigquery"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/db"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

// CloseFunc releases clients opened for a source.
type CloseFunc func() error

func noopClose() error { return nil }

// Open returns the configured source. The returned CloseFunc is never nil.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (dataset.Source, CloseFunc, error) {
	switch cfg.Dataset.Source {
	case "", config.SourceCSV:
		src, err := csvsource.New(cfg.Dataset, logg)
		if err != nil {
			return nil, noopClose, err
		}
		return src, noopClose, nil

	case config.SourceBigQuery:
		client, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return nil, noopClose, fmt.Errorf("bootstrap bigquery: %w", err)
		}
		src, err := bqsource.New(client, cfg.BigQuery, logg)
		if err != nil {
			_ = client.Close()
			return nil, noopClose, err
		}
		return src, client.Close, nil

	case config.SourceSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, noopClose, fmt.Errorf("bootstrap database: %w", err)
		}
		src, err := sqlsource.New(client, sqlsource.Tables{
			Orders:    cfg.DB.OrdersTable,
			Products:  cfg.DB.ProductsTable,
			Customers: cfg.DB.CustomersTable,
		}, logg)
		if err != nil {
			_ = client.Close()
			return nil, noopClose, err
		}
		return src, client.Close, nil
	}
	return nil, noopClose, fmt.Errorf("unsupported dataset source %q", cfg.Dataset.Source)
}
