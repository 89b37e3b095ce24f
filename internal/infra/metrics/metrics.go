package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RunsStartedTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "simulation_runs_started_total", Help: "Simulation runs started"})
	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "simulation_runs_completed_total", Help: "Simulation runs finished by outcome"}, []string{"outcome"})
	StepsTotal         = prometheus.NewCounter(prometheus.CounterOpts{Name: "simulation_steps_total", Help: "Simulation steps executed"})
	TradesTotal        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "simulation_trades_total", Help: "Trades by side"}, []string{"side"})
	HumanFillRatio     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "simulation_human_fill_ratio", Help: "Filled fraction of the human order per run", Buckets: prometheus.LinearBuckets(0, 0.1, 11)})
	HumanPnL           = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "simulation_human_pnl", Help: "Human P&L vs fair per filled run", Buckets: prometheus.LinearBuckets(-500, 50, 21)})
	RunDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "simulation_run_duration_seconds", Help: "Wall time per run", Buckets: prometheus.DefBuckets})
	SettlementErrors   = prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "Trades that failed to settle"})
	WSPublishDrops     = prometheus.NewCounter(prometheus.CounterOpts{Name: "ws_publish_drops_total", Help: "Websocket messages dropped on full buffers"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		RunsStartedTotal, RunsCompletedTotal, StepsTotal, TradesTotal,
		HumanFillRatio, HumanPnL, RunDurationSeconds,
		SettlementErrors, WSPublishDrops,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
