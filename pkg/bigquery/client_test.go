package bigquery

import (
	"context"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/rfm-dashboard/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "olist", OrdersTable: "orders"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: " ", OrdersTable: "orders"}, nil)
	assert.ErrorIs(t, err, errDatasetRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "olist"}, nil)
	assert.ErrorIs(t, err, errTableNameRequired)
}

func TestNilClientIsNotInitialized(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.ErrorIs(t, c.Ping(ctx), errClientNotInitialized)
	_, err := c.Query(ctx, "SELECT 1", nil)
	assert.ErrorIs(t, err, errClientNotInitialized)
	_, err = c.Read(ctx, "SELECT 1", nil)
	assert.ErrorIs(t, err, errClientNotInitialized)
	assert.NoError(t, c.Close())
	assert.Empty(t, c.TableRef("orders"))
}

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	gcp := config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	}
	assert.Len(t, clientOptions(gcp), 1)
}

func TestClientOptionsWithFile(t *testing.T) {
	gcp := config.GCPConfig{ApplicationCredentials: "/tmp/creds"}
	assert.Len(t, clientOptions(gcp), 1)
}

func TestClientOptionsEmpty(t *testing.T) {
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestApplyJobSettings(t *testing.T) {
	c := &Client{cfg: config.BigQueryConfig{Location: " US ", MaxBytesBilled: 1 << 30}}
	q := &bigquery.Query{}
	c.applyJobSettings(q)

	assert.Equal(t, "US", q.Location)
	assert.Equal(t, int64(1<<30), q.MaxBytesBilled)
	assert.Equal(t, map[string]string{"app": jobLabelApp}, q.Labels)

	unbounded := &bigquery.Query{}
	(&Client{}).applyJobSettings(unbounded)
	assert.Empty(t, unbounded.Location)
	assert.Zero(t, unbounded.MaxBytesBilled)
}
