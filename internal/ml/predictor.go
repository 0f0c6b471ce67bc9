package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"carprice/internal/features"
	"carprice/internal/vehicle"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPriceObserve(float64)
}

// Predictor invokes the model and maps its log-space output back to currency.
type Predictor struct {
	model   Model
	metrics MetricsInterface
}

// NewPredictor wraps a loaded model. metrics may be nil.
func NewPredictor(model Model, metrics MetricsInterface) *Predictor {
	p := &Predictor{model: model, metrics: metrics}

	if info := model.Info(); metrics != nil && !info.ModifiedAt.IsZero() {
		metrics.MLModelAgeSet(time.Since(info.ModifiedAt).Seconds())
	}
	return p
}

// Model returns the wrapped model.
func (p *Predictor) Model() Model { return p.model }

// Predict returns the price estimate for a transformed record. Any failure of
// the model is a *vehicle.ModelInvocationError; it is never retried.
func (p *Predictor) Predict(ctx context.Context, x []float64) (float64, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	y, err := p.model.Predict(ctx, x)
	if err == nil && (math.IsNaN(y) || math.IsInf(y, 0)) {
		err = fmt.Errorf("non-finite output %v", y)
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		var mie *vehicle.ModelInvocationError
		if !errors.As(err, &mie) {
			err = &vehicle.ModelInvocationError{Model: p.model.Info().Kind, Err: err}
		}
		log.Error().Err(err).Int("features", len(x)).Msg("Model invocation failed")
		return 0, err
	}

	price := features.Expm1(y)
	if price < 0 {
		// expm1 of a negative log price lands in (-1, 0)
		price = 0
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPriceObserve(price)
	}
	return price, nil
}
