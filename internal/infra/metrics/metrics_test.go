package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesSimulationMetrics(t *testing.T) {
	reg := Init(zerolog.Nop())
	RunsStartedTotal.Inc()
	TradesTotal.WithLabelValues("buy_from_ask").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "simulation_runs_started_total")
	assert.Contains(t, string(body), `simulation_trades_total{side="buy_from_ask"}`)
}
