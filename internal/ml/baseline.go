package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"carprice/internal/vehicle"
)

// BaselineModel predicts the target-encoded mean price of the car model, ignoring
// every other feature. It exists for smoke runs and demos without a trained artifact.
type BaselineModel struct {
	index int
	width int
	info  ModelInfo
}

// NewBaselineModel reads the model-name position from the schema.
func NewBaselineModel(schema *vehicle.Schema) (*BaselineModel, error) {
	idx := schema.ModelIndex(vehicle.FieldModelo)
	if idx < 0 {
		return nil, fmt.Errorf("baseline model needs a %q field", vehicle.FieldModelo)
	}
	return &BaselineModel{
		index: idx,
		width: schema.Len(),
		info: ModelInfo{
			Kind:     KindBaseline,
			Source:   "encoded " + vehicle.FieldModelo + " mean",
			Version:  "baseline",
			Features: schema.ModelNames(),
			LoadedAt: time.Now(),
		},
	}, nil
}

// Predict returns log1p of the encoded model-name mean.
func (m *BaselineModel) Predict(_ context.Context, x []float64) (float64, error) {
	if len(x) != m.width {
		return 0, fmt.Errorf("expected %d features, got %d", m.width, len(x))
	}
	v := x[m.index]
	if v < 0 || math.IsNaN(v) {
		return 0, fmt.Errorf("encoded %s is %v", vehicle.FieldModelo, v)
	}
	return math.Log1p(v), nil
}

// Info describes the baseline.
func (m *BaselineModel) Info() ModelInfo { return m.info }
