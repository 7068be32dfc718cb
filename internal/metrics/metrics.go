package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OK    = "ok"
	Error = "error"
)

var (
	statements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellsql_statements_total",
			Help: "Statements executed per cell by outcome",
		},
		[]string{"cell", "outcome"},
	)
	statementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellsql_statement_duration_seconds",
			Help:    "Histogram of statement execution time per cell",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cell"},
	)
	studioCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellsql_studio_commands_total",
			Help: "Studio commands relayed by the gateway by type and outcome",
		},
		[]string{"type", "outcome"},
	)
	openCells = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cellsql_open_cells",
			Help: "Cells currently open in this process",
		},
	)
)

func init() {
	prometheus.MustRegister(statements, statementDuration, studioCommands, openCells)
}

// ObserveStatement records one statement execution.
func ObserveStatement(cell string, d time.Duration, err error) {
	statementDuration.WithLabelValues(cell).Observe(d.Seconds())
	statements.WithLabelValues(cell, outcome(err)).Inc()
}

// IncStudio records one studio command.
func IncStudio(typ string, err error) {
	studioCommands.WithLabelValues(typ, outcome(err)).Inc()
}

// CellOpened increments the open cells gauge.
func CellOpened() { openCells.Inc() }

// CellClosed decrements the open cells gauge.
func CellClosed() { openCells.Dec() }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler { return promhttp.Handler() }

func outcome(err error) string {
	if err != nil {
		return Error
	}
	return OK
}
