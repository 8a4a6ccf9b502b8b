package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("RFM_INSTANCE_ID", "api-1")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "api-1", GetID())
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("RFM_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "web.1", GetID())
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("RFM_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	assert.NotEmpty(t, GetID())
}
