package csvsource

import (
	"bytes"
	"context"
	"math"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rfm-dashboard/internal/dataset"
	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	"github.com/angelmondragon/rfm-dashboard/pkg/config"
	"github.com/angelmondragon/rfm-dashboard/pkg/logger"
)

const ordersCSV = `order_id,customer_id,order_purchase_timestamp,price,freight_value
O1,C1,2024-01-01 10:00:00,10,2
O2,C1,2024-01-10 09:30:00,5,1
O3,C2,2024-01-05 18:45:00,20,0
`

const productsCSV = `order_id,product_category_name_english
O1,bed_bath_table
O2,health_beauty
O3,bed_bath_table
`

const customersCSV = `customer_id,payment_type,order_status,customer_state
C1,credit_card,delivered,SP
C1,voucher,delivered,SP
C2,boleto,canceled,RJ
`

var testFiles = Files{Orders: "all_data.csv", Products: "df_products.csv", Customers: "customers_df.csv"}

func testFS(orders string) fstest.MapFS {
	return fstest.MapFS{
		"all_data.csv":     {Data: []byte(orders)},
		"df_products.csv":  {Data: []byte(productsCSV)},
		"customers_df.csv": {Data: []byte(customersCSV)},
	}
}

func TestLoadReadsAllTables(t *testing.T) {
	buf := &bytes.Buffer{}
	src := NewFS(testFS(ordersCSV), testFiles, logger.New(logger.Options{ServiceName: "test", Output: buf}))

	ds, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, config.SourceCSV, src.Name())
	assert.Equal(t, rfm.OrderRecord{
		CustomerID:        "C1",
		OrderID:           "O1",
		PurchaseTimestamp: "2024-01-01 10:00:00",
		Price:             10,
		FreightValue:      2,
	}, ds.Orders[0])
	assert.Len(t, ds.Orders, 3)
	assert.Equal(t, dataset.ProductLine{OrderID: "O2", Category: "health_beauty"}, ds.Products[1])
	assert.Equal(t, dataset.CustomerProfile{CustomerID: "C2", PaymentType: "boleto", OrderStatus: "canceled", State: "RJ"}, ds.Customers[2])
	assert.Contains(t, buf.String(), "csv dataset loaded")

	rows, err := rfm.Compute(ds.Orders)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestLoadMapsMissingCells(t *testing.T) {
	orders := `customer_id,order_id,order_purchase_timestamp,price,freight_value
C1,O1,2024-01-01 10:00:00,NaN,2
`
	ds, err := NewFS(testFS(orders), testFiles, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Orders, 1)
	assert.True(t, math.IsNaN(ds.Orders[0].Price))

	_, err = rfm.Compute(ds.Orders)
	assert.ErrorIs(t, err, rfm.ErrInvalidAmount)
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	orders := `customer_id,order_id,price
C1,O1,10
`
	_, err := NewFS(testFS(orders), testFiles, nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_purchase_timestamp, freight_value")
}

func TestLoadMissingFile(t *testing.T) {
	fsys := testFS(ordersCSV)
	delete(fsys, "customers_df.csv")

	_, err := NewFS(fsys, testFiles, nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening customers_df.csv")
}

func TestLoadHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFS(testFS(ordersCSV), testFiles, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidatesDirectory(t *testing.T) {
	_, err := New(config.DatasetConfig{Dir: ""}, nil)
	assert.Error(t, err)

	_, err = New(config.DatasetConfig{Dir: t.TempDir() + "/missing"}, nil)
	assert.Error(t, err)

	src, err := New(config.DatasetConfig{Dir: t.TempDir(), OrdersFile: "a.csv"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", src.files.Orders)
}
