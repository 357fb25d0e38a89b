package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the server's Prometheus collectors, grouped by
// subsystem. Every Registry gets its own underlying prometheus
// registry so constructing more than one (tests do) never collides.
type Registry struct {
	Sessions  sessionMetrics
	Rooms     roomMetrics
	Diffs     diffMetrics
	Writeback writebackMetrics

	reg *prometheus.Registry
}

type sessionMetrics struct {
	Active        prometheus.Gauge
	UpgradeErrors prometheus.Counter
}

type roomMetrics struct {
	Active prometheus.Gauge
	Loaded prometheus.Counter
	Minted prometheus.Counter
}

type diffMetrics struct {
	GroupsApplied prometheus.Counter
	LagRecoveries prometheus.Counter
}

type writebackMetrics struct {
	RoomsWritten prometheus.Counter
	Errors       prometheus.Counter
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Registry{
		Sessions: sessionMetrics{
			Active: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sudoku_sessions_active",
				Help: "Number of websocket sessions currently connected",
			}),
			UpgradeErrors: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_session_upgrade_errors_total",
				Help: "Total number of failed websocket upgrade attempts",
			}),
		},
		Rooms: roomMetrics{
			Active: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sudoku_rooms_active",
				Help: "Number of rooms currently resident in memory",
			}),
			Loaded: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_rooms_loaded_total",
				Help: "Total number of rooms restored from the database",
			}),
			Minted: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_rooms_minted_total",
				Help: "Total number of freshly created rooms",
			}),
		},
		Diffs: diffMetrics{
			GroupsApplied: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_diff_groups_applied_total",
				Help: "Total number of diff groups applied to boards",
			}),
			LagRecoveries: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_diff_lag_recoveries_total",
				Help: "Total number of sessions resynced with a full update after lagging",
			}),
		},
		Writeback: writebackMetrics{
			RoomsWritten: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_writeback_rooms_total",
				Help: "Total number of dirty rooms written back to the database",
			}),
			Errors: factory.NewCounter(prometheus.CounterOpts{
				Name: "sudoku_writeback_errors_total",
				Help: "Total number of failed room writebacks",
			}),
		},
		reg: reg,
	}
}

// Handler returns an HTTP handler exposing this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
