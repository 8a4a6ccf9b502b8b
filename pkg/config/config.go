package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RFM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SourceCSV      = "csv"
	SourceBigQuery = "bigquery"
	SourceSQL      = "sql"

	EnvAppEnv           = "RFM_APP_ENV"
	EnvPort             = "RFM_APP_PORT"
	EnvLogLevel         = "RFM_LOG_LEVEL"
	EnvDatasetSource    = "RFM_DATASET_SOURCE"
	EnvDatasetDir       = "RFM_DATASET_DIR"
	EnvAggWorkers       = "RFM_AGG_WORKERS"
	EnvDashboardTopK    = "RFM_DASHBOARD_TOP_K"
	EnvDBDSN            = "RFM_DB_DSN"
	EnvDBDriver         = "RFM_DB_DRIVER"
	EnvGCPProjectID     = "RFM_GCP_PROJECT_ID"
	EnvBigQueryDataset  = "RFM_BIGQUERY_DATASET"
	EnvBigQueryOrders   = "RFM_BIGQUERY_ORDERS_TABLE"
	EnvDatasetLoadLimit = "RFM_DATASET_LOAD_TIMEOUT"
)

type Config struct {
	App         AppConfig
	Dataset     DatasetConfig
	Aggregation AggregationConfig
	DB          DBConfig
	GCP         GCPConfig
	BigQuery    BigQueryConfig
}

var validate = validator.New()

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the settings required by the
// selected dataset source.
func (c *Config) Validate() error {
	c.Dataset.Source = strings.ToLower(strings.TrimSpace(c.Dataset.Source))
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	var missing []string
	switch c.Dataset.Source {
	case SourceBigQuery:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			missing = append(missing, EnvGCPProjectID)
		}
		if strings.TrimSpace(c.BigQuery.Dataset) == "" {
			missing = append(missing, EnvBigQueryDataset)
		}
	case SourceSQL:
		if strings.TrimSpace(c.DB.DSN) == "" {
			missing = append(missing, EnvDBDSN)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("dataset source %q requires %s", c.Dataset.Source, strings.Join(missing, ", "))
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"RFM_APP_ENV" required:"true" validate:"required"`
	Port         string `envconfig:"RFM_APP_PORT" default:"8080" validate:"required,numeric"`
	LogLevel     string `envconfig:"RFM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RFM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DatasetConfig struct {
	Source        string        `envconfig:"RFM_DATASET_SOURCE" default:"csv" validate:"oneof=csv bigquery sql"`
	Dir           string        `envconfig:"RFM_DATASET_DIR" default:"data"`
	OrdersFile    string        `envconfig:"RFM_DATASET_ORDERS_FILE" default:"all_data.csv" validate:"required"`
	ProductsFile  string        `envconfig:"RFM_DATASET_PRODUCTS_FILE" default:"df_products.csv" validate:"required"`
	CustomersFile string        `envconfig:"RFM_DATASET_CUSTOMERS_FILE" default:"customers_df.csv" validate:"required"`
	LoadTimeout   time.Duration `envconfig:"RFM_DATASET_LOAD_TIMEOUT" default:"2m" validate:"min=0"`
}

type AggregationConfig struct {
	Workers           int `envconfig:"RFM_AGG_WORKERS" default:"1" validate:"min=1,max=64"`
	ParallelThreshold int `envconfig:"RFM_AGG_PARALLEL_THRESHOLD" default:"50000" validate:"min=0"`
	TopK              int `envconfig:"RFM_DASHBOARD_TOP_K" default:"5" validate:"min=1,max=100"`
}

type DBConfig struct {
	DSN    string `envconfig:"RFM_DB_DSN"`
	Driver string `envconfig:"RFM_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	MaxOpenConns    int           `envconfig:"RFM_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"RFM_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"RFM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RFM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	OrdersTable    string `envconfig:"RFM_DB_ORDERS_TABLE" default:"orders"`
	ProductsTable  string `envconfig:"RFM_DB_PRODUCTS_TABLE" default:"products"`
	CustomersTable string `envconfig:"RFM_DB_CUSTOMERS_TABLE" default:"customers"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RFM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RFM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RFM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"RFM_BIGQUERY_DATASET" default:"olist"`
	OrdersTable    string `envconfig:"RFM_BIGQUERY_ORDERS_TABLE" default:"all_data"`
	ProductsTable  string `envconfig:"RFM_BIGQUERY_PRODUCTS_TABLE" default:"df_products"`
	CustomersTable string `envconfig:"RFM_BIGQUERY_CUSTOMERS_TABLE" default:"customers_df"`
	Location       string `envconfig:"RFM_BIGQUERY_LOCATION"`
	MaxBytesBilled int64  `envconfig:"RFM_BIGQUERY_MAX_BYTES_BILLED" default:"0" validate:"min=0"`
}

// Tables lists the configured table names, skipping blanks.
func (b BigQueryConfig) Tables() []string {
	tables := []string{}
	for _, name := range []string{b.OrdersTable, b.ProductsTable, b.CustomersTable} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			tables = append(tables, trimmed)
		}
	}
	return tables
}
