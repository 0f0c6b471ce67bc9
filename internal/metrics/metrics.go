// Package metrics provides Prometheus metrics for the price prediction service.
// It covers the prediction pipeline (requests, validation failures, error kinds,
// latency), the model itself and the reference data the encoder was fitted on.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Pipeline metrics
	RequestsTotal      prometheus.Counter     // Prediction requests received
	ValidationFailures prometheus.Counter     // Requests stopped by the required-field gate
	RequestErrors      *prometheus.CounterVec // Failed requests by error kind
	RequestDuration    prometheus.Histogram   // End-to-end pipeline duration

	// Model metrics
	MLPredictions  prometheus.Counter   // Successful model invocations
	MLFailures     prometheus.Counter   // Failed model invocations
	MLLatency      prometheus.Histogram // Model invocation latency
	MLModelAge     prometheus.Gauge     // Age of the model artifact in seconds
	PredictedPrice prometheus.Histogram // Distribution of predicted prices

	// Reference data metrics
	EncoderFitSeconds prometheus.Gauge // Time spent fitting the target encoder at startup
	ReferenceRows     prometheus.Gauge // Priced rows the encoder was fitted on

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // HTTP requests by route and status code
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_requests_total",
			Help: "Total number of prediction requests",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_validation_failures_total",
			Help: "Total number of requests with required fields missing",
		}),
		RequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_errors_total",
			Help: "Total number of failed prediction requests by error kind",
		}, []string{"kind"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_duration_seconds",
			Help:    "End-to-end prediction pipeline duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of model invocations that returned a price",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of failed model invocations",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		PredictedPrice: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "predicted_price_brl",
			Help:    "Distribution of predicted prices in BRL",
			Buckets: prometheus.ExponentialBuckets(5000, 2, 10),
		}),
		EncoderFitSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "encoder_fit_seconds",
			Help: "Time spent fitting the target encoder",
		}),
		ReferenceRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reference_rows",
			Help: "Number of priced reference rows behind the encoder",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}
