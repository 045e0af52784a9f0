package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetrainMetrics observes scheduled retraining runs.
type RetrainMetrics struct {
	service  string
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runExamples *prometheus.HistogramVec
	finalLoss   prometheus.Gauge
}

func NewRetrainMetrics(service string) *RetrainMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "armr",
			Subsystem: "retrain",
			Name:      "runs_total",
			Help:      "Total retraining runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "armr",
			Subsystem: "retrain",
			Name:      "run_duration_seconds",
			Help:      "Retraining run duration in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"service"},
	)
	runExamples := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "armr",
			Subsystem: "retrain",
			Name:      "run_examples",
			Help:      "Distribution of training examples per run.",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"service"},
	)
	finalLoss := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "armr",
			Subsystem: "retrain",
			Name:      "last_epoch_loss",
			Help:      "Loss of the final epoch of the most recent run.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(runsTotal, runDuration, runExamples, finalLoss)

	return &RetrainMetrics{
		service:     service,
		registry:    registry,
		runsTotal:   runsTotal,
		runDuration: runDuration,
		runExamples: runExamples,
		finalLoss:   finalLoss,
	}
}

func (m *RetrainMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrainMetrics) RecordRun(duration time.Duration, examples int, epochLosses []float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(m.service, status).Inc()
	if err != nil {
		return
	}
	m.runDuration.WithLabelValues(m.service).Observe(duration.Seconds())
	m.runExamples.WithLabelValues(m.service).Observe(float64(examples))
	if len(epochLosses) > 0 {
		m.finalLoss.Set(epochLosses[len(epochLosses)-1])
	}
}
