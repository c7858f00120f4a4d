package metrics

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	JobsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_jobs_total",
			Help: "Total number of finished collection jobs by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	JobStepDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "tracker_job_step_duration_seconds",
			Help:       "Duration of each step of a collection job.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_collection_cycle_duration_seconds",
			Help:    "Duration of each full collection cycle in seconds.",
			Buckets: []float64{60, 300, 900, 1800, 3600},
		},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_queue_depth",
			Help: "Number of waiting and active collection jobs.",
		},
	)
	CredentialUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_credential_usage_total",
			Help: "Dispatches per credential since the last daily reset.",
		},
		[]string{"credential"},
	)
)

func StartMetricsServer(port int) {

	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(JobsCounter)
	prometheus.MustRegister(JobStepDuration)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(CredentialUsage)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), nil))
	}()
}
