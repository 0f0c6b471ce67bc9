package metrics

import (
	"strconv"
	"time"
)

// MetricsWrapper adapts Metrics to the narrow interfaces the pipeline, the
// predictor and the HTTP layer depend on. A nil wrapper is a no-op.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	if w != nil {
		w.m.MLPredictions.Inc()
	}
}

func (w *MetricsWrapper) MLFailuresInc() {
	if w != nil {
		w.m.MLFailures.Inc()
	}
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	if w != nil {
		w.m.MLLatency.Observe(v)
	}
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	if w != nil {
		w.m.MLModelAge.Set(v)
	}
}

func (w *MetricsWrapper) MLPriceObserve(v float64) {
	if w != nil {
		w.m.PredictedPrice.Observe(v)
	}
}

func (w *MetricsWrapper) RequestsInc() {
	if w != nil {
		w.m.RequestsTotal.Inc()
	}
}

func (w *MetricsWrapper) ValidationFailuresInc() {
	if w != nil {
		w.m.ValidationFailures.Inc()
	}
}

func (w *MetricsWrapper) ErrorsInc(kind string) {
	if w != nil {
		w.m.RequestErrors.WithLabelValues(kind).Inc()
	}
}

func (w *MetricsWrapper) RequestLatencyObserve(v float64) {
	if w != nil {
		w.m.RequestDuration.Observe(v)
	}
}

// EncoderFitted records how the startup encoder fit went.
func (w *MetricsWrapper) EncoderFitted(took time.Duration, rows int) {
	if w != nil {
		w.m.EncoderFitSeconds.Set(took.Seconds())
		w.m.ReferenceRows.Set(float64(rows))
	}
}

// HTTPRequest counts one served request.
func (w *MetricsWrapper) HTTPRequest(route string, code int) {
	if w != nil {
		w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	}
}
