// Package pipeline runs one price prediction: required-field gate, feature
// transform, model invocation, currency formatting. A Pipeline holds only
// read-only collaborators built at startup, so one instance serves every request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carprice/internal/features"
	"carprice/internal/ml"
	"carprice/internal/vehicle"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the pipeline
type MetricsInterface interface {
	RequestsInc()
	ValidationFailuresInc()
	ErrorsInc(kind string)
	RequestLatencyObserve(float64)
}

// Result is a completed prediction.
type Result struct {
	ID        string        `json:"id"`
	Price     float64       `json:"price"`
	Formatted string        `json:"formatted"`
	Vector    []float64     `json:"vector,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Pipeline wires the transformer to the predictor.
type Pipeline struct {
	schema      *vehicle.Schema
	transformer *features.Transformer
	predictor   *ml.Predictor
	metrics     MetricsInterface
}

// New builds a pipeline. metrics may be nil.
func New(transformer *features.Transformer, predictor *ml.Predictor, metrics MetricsInterface) (*Pipeline, error) {
	if transformer == nil || predictor == nil {
		return nil, fmt.Errorf("pipeline needs a transformer and a predictor")
	}
	return &Pipeline{
		schema:      transformer.Schema(),
		transformer: transformer,
		predictor:   predictor,
		metrics:     metrics,
	}, nil
}

// Schema returns the record schema the pipeline accepts.
func (p *Pipeline) Schema() *vehicle.Schema { return p.schema }

// Transformer returns the shared transformer.
func (p *Pipeline) Transformer() *features.Transformer { return p.transformer }

// Predictor returns the shared predictor.
func (p *Pipeline) Predictor() *ml.Predictor { return p.predictor }

// Run predicts the price of r. When the gate rejects r the model is never invoked.
func (p *Pipeline) Run(ctx context.Context, r *vehicle.Record) (*Result, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RequestsInc()
	}

	res, err := p.run(ctx, r)

	if p.metrics != nil {
		p.metrics.RequestLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, vehicle.ErrValidation) {
				p.metrics.ValidationFailuresInc()
			} else {
				p.metrics.ErrorsInc(Kind(err))
			}
		}
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	log.Debug().
		Str("id", res.ID).
		Float64("price", res.Price).
		Dur("took", res.Duration).
		Msg("Prediction completed")
	return res, nil
}

// Reject counts a request that failed before a record could be built, so the
// request and error counters stay consistent with Run.
func (p *Pipeline) Reject(err error) {
	if p.metrics == nil || err == nil {
		return
	}
	p.metrics.RequestsInc()
	if errors.Is(err, vehicle.ErrValidation) {
		p.metrics.ValidationFailuresInc()
		return
	}
	p.metrics.ErrorsInc(Kind(err))
}

func (p *Pipeline) run(ctx context.Context, r *vehicle.Record) (*Result, error) {
	if err := p.schema.Validate(r); err != nil {
		return nil, err
	}

	vec, err := p.transformer.Transform(r)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	price, err := p.predictor.Predict(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	return &Result{
		ID:        uuid.NewString(),
		Price:     price,
		Formatted: ml.FormatBRL(price),
		Vector:    vec,
	}, nil
}

// Error kinds as reported in metrics and API responses.
const (
	KindValidation      = "validation"
	KindSchemaMismatch  = "schema_mismatch"
	KindDomain          = "domain"
	KindUnseenCategory  = "unseen_category"
	KindModelInvocation = "model_invocation"
	KindInternal        = "internal"
)

// Kind classifies err into one of the error kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, vehicle.ErrValidation):
		return KindValidation
	case errors.Is(err, vehicle.ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, vehicle.ErrDomain):
		return KindDomain
	case errors.Is(err, vehicle.ErrUnseenCategory):
		return KindUnseenCategory
	case errors.Is(err, vehicle.ErrModelInvocation):
		return KindModelInvocation
	default:
		return KindInternal
	}
}

// Messages shown to whoever filled in the record.
const (
	MsgValidation = "Preencha todos os campos obrigatórios antes de fazer a previsão."
	MsgFailure    = "Não foi possível calcular a previsão. Tente novamente mais tarde."
)

// Describe turns a pipeline error into the message shown to the caller.
// Validation failures name the missing fields; everything else is generic.
func Describe(schema *vehicle.Schema, err error) string {
	var ve *vehicle.ValidationError
	if !errors.As(err, &ve) {
		return MsgFailure
	}
	labels := make([]string, len(ve.Missing))
	for i, name := range ve.Missing {
		labels[i] = name
		if f, ok := schema.Lookup(name); ok {
			labels[i] = f.Label
		}
	}
	return fmt.Sprintf("%s (%s)", MsgValidation, strings.Join(labels, ", "))
}
