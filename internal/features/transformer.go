// Package features turns a vehicle record into the numeric vector the price
// model consumes: log1p on numeric fields and option flags, target encoding on
// categorical fields, everything in the schema's model order.
package features

import (
	"fmt"
	"strings"

	"carprice/internal/vehicle"

	"github.com/rs/zerolog/log"
)

// UnseenPolicy decides what happens to a category absent from the reference data.
type UnseenPolicy string

const (
	// UnseenFallback encodes unseen categories as the global mean price.
	UnseenFallback UnseenPolicy = "fallback"
	// UnseenStrict rejects them with an UnseenCategoryError.
	UnseenStrict UnseenPolicy = "strict"
)

// ParseUnseenPolicy accepts "fallback" (also the empty string) or "strict".
func ParseUnseenPolicy(s string) (UnseenPolicy, error) {
	switch UnseenPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnseenFallback:
		return UnseenFallback, nil
	case UnseenStrict:
		return UnseenStrict, nil
	default:
		return "", fmt.Errorf("unknown unseen-category policy %q (want fallback or strict)", s)
	}
}

// Transformer is built once and shared read-only across requests.
type Transformer struct {
	schema  *vehicle.Schema
	encoder *TargetEncoder
	policy  UnseenPolicy
}

// NewTransformer checks that the encoder covers every categorical field of the schema.
func NewTransformer(schema *vehicle.Schema, encoder *TargetEncoder, policy UnseenPolicy) (*Transformer, error) {
	if schema == nil || encoder == nil {
		return nil, fmt.Errorf("transformer needs a schema and a fitted encoder")
	}
	for _, name := range schema.ByRole(vehicle.Categorical) {
		if !encoder.Covers(name) {
			return nil, &vehicle.SchemaMismatchError{Field: name, Reason: "encoder was not fitted on this field"}
		}
	}
	if policy == "" {
		policy = UnseenFallback
	}
	return &Transformer{schema: schema, encoder: encoder, policy: policy}, nil
}

// Schema returns the schema the transformer emits vectors for.
func (t *Transformer) Schema() *vehicle.Schema { return t.schema }

// Encoder returns the fitted encoder.
func (t *Transformer) Encoder() *TargetEncoder { return t.encoder }

// Policy returns the unseen-category policy.
func (t *Transformer) Policy() UnseenPolicy { return t.policy }

// Transform produces the model input for r. Unset numeric values count as zero
// and unanswered flags follow vehicle.FlagUnspecifiedAs.
func (t *Transformer) Transform(r *vehicle.Record) ([]float64, error) {
	if err := t.schema.CheckRecord(r); err != nil {
		return nil, err
	}

	fields := t.schema.Fields()
	entries := r.Entries()
	out := make([]float64, len(fields))

	for i := range out {
		pos := t.schema.RecordPosition(i)
		f, v := fields[pos], entries[pos].Value
		switch f.Role {
		case vehicle.Categorical:
			value := strings.TrimSpace(v.String())
			code, known := t.encoder.Encode(f.Name, value)
			if !known && value != "" {
				if t.policy == UnseenStrict {
					return nil, &vehicle.UnseenCategoryError{Field: f.Name, Value: value}
				}
				log.Debug().Str("field", f.Name).Str("value", value).Msg("Unseen category, using prior")
			}
			out[i] = code
		case vehicle.Numeric:
			x, err := Log1p(f.Name, v.Float())
			if err != nil {
				return nil, err
			}
			out[i] = x
		case vehicle.Flag:
			x, err := Log1p(f.Name, v.FlagState().Float())
			if err != nil {
				return nil, err
			}
			out[i] = x
		default:
			return nil, &vehicle.SchemaMismatchError{Field: f.Name, Reason: fmt.Sprintf("unsupported role %s", f.Role)}
		}
	}

	return out, nil
}
