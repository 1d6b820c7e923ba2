package exports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_export_jobs_submitted_total",
			Help: "Report export submissions by outcome",
		},
		[]string{"outcome"},
	)

	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_export_polls_total",
			Help: "Export job status polls by observed status",
		},
		[]string{"status"},
	)

	activePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_export_active_pollers",
			Help: "Export jobs currently being polled",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_export_downloads_total",
			Help: "Report downloads by outcome",
		},
		[]string{"outcome"},
	)
)
