// Package ml loads the trained price model and turns its log-space output back
// into currency. Several model back ends share the Model interface: a native
// tree ensemble, an external inference script, a remote HTTP endpoint and a
// baseline used for smoke runs.
//
// Models are loaded once at startup and are safe for concurrent use.
package ml

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"carprice/internal/vehicle"

	"github.com/rs/zerolog/log"
)

// Model is a trained regressor. Predict receives a transformed record and
// returns the predicted price in log1p space.
type Model interface {
	Predict(ctx context.Context, features []float64) (float64, error)
	Info() ModelInfo
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	Version    string    `json:"version,omitempty"`
	Features   []string  `json:"features"`
	LoadedAt   time.Time `json:"loaded_at"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// Model kinds accepted by LoadModel.
const (
	KindForest   = "forest"
	KindScript   = "script"
	KindRemote   = "remote"
	KindBaseline = "baseline"
)

// ModelConfig selects and parameterizes a model back end.
type ModelConfig struct {
	Kind        string
	Path        string        // forest JSON or serialized model for the script
	URL         string        // remote endpoint
	Interpreter string        // script interpreter; searched for when empty
	Script      string        // inference script; an embedded one is written when empty
	Timeout     time.Duration // per-invocation bound for script and remote models
}

// LoadModel builds the configured model for the given schema. The returned
// model's feature order is checked against the schema's model order where the
// back end declares one.
func LoadModel(ctx context.Context, cfg ModelConfig, schema *vehicle.Schema) (Model, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	var (
		m   Model
		err error
	)
	switch strings.ToLower(cfg.Kind) {
	case KindForest, "":
		m, err = LoadForest(cfg.Path)
	case KindScript:
		m, err = NewScriptModel(ctx, cfg, schema.ModelNames())
	case KindRemote:
		m, err = NewRemoteModel(cfg.URL, cfg.Timeout, schema.ModelNames())
	case KindBaseline:
		m, err = NewBaselineModel(schema)
	default:
		return nil, fmt.Errorf("unknown model kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err := checkFeatures(m.Info().Features, schema.ModelNames()); err != nil {
		return nil, err
	}

	info := m.Info()
	log.Info().
		Str("kind", info.Kind).
		Str("source", info.Source).
		Str("version", info.Version).
		Int("features", len(info.Features)).
		Msg("Model loaded")

	return m, nil
}

func checkFeatures(model, schema []string) error {
	if len(model) == 0 {
		return nil
	}
	if len(model) != len(schema) {
		return &vehicle.SchemaMismatchError{Reason: fmt.Sprintf("model expects %d features, schema has %d", len(model), len(schema))}
	}
	for i := range model {
		if model[i] != schema[i] {
			return &vehicle.SchemaMismatchError{
				Field:  schema[i],
				Reason: fmt.Sprintf("model expects %q at position %d", model[i], i),
			}
		}
	}
	return nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
