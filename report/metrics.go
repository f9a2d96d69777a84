package report

import "github.com/prometheus/client_golang/prometheus"

var (
	reportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagelens_report_duration_seconds",
			Help:    "Time taken to produce a report, by outcome",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"outcome"},
	)

	reportFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagelens_report_failures_total",
			Help: "Failed reports by error code",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(reportDuration, reportFailures)
}
