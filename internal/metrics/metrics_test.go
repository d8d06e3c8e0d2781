package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/medtechbot/internal/metrics"
)

func TestNilCollectorsAreNoops(t *testing.T) {
	t.Parallel()

	var c *metrics.Collectors
	assert.NotPanics(t, func() {
		c.StepEntered("urgent", "phone")
		c.ValidationFailed("urgent", "tax_id")
		c.EquipmentDeclined("urgent")
		c.Submitted("urgent", true, 0.1)
		c.Redelivered(false)
	})
	assert.Nil(t, c.Registry())
}

func TestCollectorsExposeCounters(t *testing.T) {
	t.Parallel()

	c := metrics.New()
	c.Submitted("repair", true, 0.2)
	c.Submitted("repair", false, 0.3)
	c.StepEntered("audit", "phone")

	count, err := testutil.GatherAndCount(c.Registry(), "medtechbot_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `medtechbot_step_entries_total{flow="audit",step="phone"} 1`), body)
	assert.True(t, strings.Contains(body, `medtechbot_submissions_total{flow="repair",outcome="failed"} 1`), body)
}
