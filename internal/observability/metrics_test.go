package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.CandidatesDiscovered.WithLabelValues("pumpfun").Inc()
	m.CandidatesDiscovered.WithLabelValues("pumpfun").Inc()
	m.GatewayErrors.WithLabelValues("rugcheck").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CandidatesDiscovered.WithLabelValues("pumpfun")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayErrors.WithLabelValues("rugcheck")))

	n, err := testutil.GatherAndCount(reg, "test_listener_candidates_discovered_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.GatewayErrors.WithLabelValues("helper-test"))
	RecordGatewayCall("helper-test", 0.1, nil)
	RecordGatewayCall("helper-test", 0.2, errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.GatewayErrors.WithLabelValues("helper-test")))

	start := time.Unix(1700000000, 0)
	UpdateCycle(start, 2)
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(DefaultMetrics.CycleStart))
	assert.Equal(t, 2.0, testutil.ToFloat64(DefaultMetrics.BuysInCycle))

	RecordValidation("liquidity", true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(DefaultMetrics.Validations.WithLabelValues("liquidity", "true")), 1.0)
}

func TestHandler(t *testing.T) {
	RecordPurchase("bought")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "launch_sniper_executor_purchases_total"))
}
