package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	IngestedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_messages_total",
			Help: "Scraped messages by ingestion outcome.",
		},
		[]string{"outcome"},
	)
	ClassificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classification_duration_seconds",
			Help:    "Duration of classifying one message.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
	Dispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatched_total",
			Help: "Vacancy fan-out decisions by delivery mode.",
		},
		[]string{"mode"},
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Delivery queue tasks by result.",
		},
		[]string{"result"},
	)
	DeliveryRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retries_total",
			Help: "Tasks republished after rate limiting.",
		},
	)
	BatchFlushEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_flush_enqueued_total",
			Help: "Backlog entries enqueued by batch flushes and pulls.",
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ErrorsCounter,
			IngestedMessages,
			ClassificationDuration,
			Dispatched,
			Deliveries,
			DeliveryRetries,
			BatchFlushEnqueued,
		)
	})
}

func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
