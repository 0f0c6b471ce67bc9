package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"carprice/internal/dataset"

	"github.com/rs/zerolog/log"
)

// EncoderParams controls how strongly small categories shrink toward the prior.
type EncoderParams struct {
	MinSamplesLeaf float64 `json:"min_samples_leaf" yaml:"minSamplesLeaf"`
	Smoothing      float64 `json:"smoothing" yaml:"smoothing"`
}

// DefaultEncoderParams are the parameters the model was trained with.
func DefaultEncoderParams() EncoderParams {
	return EncoderParams{MinSamplesLeaf: 20, Smoothing: 10}
}

// CategoryStat is the fitted state of one category value.
type CategoryStat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Code  float64 `json:"code"`
}

// TargetEncoder maps category values to a smoothed mean of the price. It is
// immutable once fitted and safe for concurrent use.
type TargetEncoder struct {
	Params      EncoderParams                      `json:"params"`
	Prior       float64                            `json:"prior"`
	Columns     []string                           `json:"columns"`
	Stats       map[string]map[string]CategoryStat `json:"stats"`
	Fingerprint string                             `json:"fingerprint"`
	Rows        int                                `json:"rows"`
	FittedAt    time.Time                          `json:"fitted_at"`
}

// FitEncoder fits one encoder over the given categorical columns of ds against
// its price column. Rows without a price are skipped; missing categories are not
// counted and encode to the prior.
func FitEncoder(ds *dataset.Dataset, columns []string, params EncoderParams) (*TargetEncoder, error) {
	start := time.Now()

	if params.Smoothing <= 0 {
		return nil, fmt.Errorf("smoothing must be positive, got %v", params.Smoothing)
	}
	prices, err := ds.Prices()
	if err != nil {
		return nil, fmt.Errorf("reference data has no price column: %w", err)
	}

	var sum float64
	var n int
	for _, p := range prices {
		if math.IsNaN(p) {
			continue
		}
		sum += p
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("reference data has no priced rows")
	}

	enc := &TargetEncoder{
		Params:      params,
		Prior:       sum / float64(n),
		Columns:     append([]string(nil), columns...),
		Stats:       make(map[string]map[string]CategoryStat, len(columns)),
		Fingerprint: ds.Fingerprint(),
		Rows:        n,
		FittedAt:    time.Now().UTC(),
	}

	for _, col := range columns {
		values, err := ds.TextColumn(col)
		if err != nil {
			return nil, fmt.Errorf("reference data: %w", err)
		}

		sums := make(map[string]float64)
		counts := make(map[string]int)
		for i, v := range values {
			if v == "" || math.IsNaN(prices[i]) {
				continue
			}
			sums[v] += prices[i]
			counts[v]++
		}

		stats := make(map[string]CategoryStat, len(counts))
		for v, c := range counts {
			mean := sums[v] / float64(c)
			stats[v] = CategoryStat{Count: c, Mean: mean, Code: enc.smooth(c, mean)}
		}
		enc.Stats[col] = stats
	}

	log.Info().
		Strs("columns", columns).
		Int("rows", n).
		Float64("prior", enc.Prior).
		Dur("took", time.Since(start)).
		Msg("Target encoder fitted")

	return enc, nil
}

// smooth blends a category mean with the prior. Categories seen once carry no
// information beyond the prior.
func (e *TargetEncoder) smooth(count int, mean float64) float64 {
	if count == 1 {
		return e.Prior
	}
	w := 1 / (1 + math.Exp(-(float64(count)-e.Params.MinSamplesLeaf)/e.Params.Smoothing))
	return e.Prior*(1-w) + mean*w
}

// Encode returns the code of value in column col. known is false when the value
// was never seen in the reference data; the returned code is then the prior.
func (e *TargetEncoder) Encode(col, value string) (code float64, known bool) {
	stats, ok := e.Stats[col]
	if !ok || value == "" {
		return e.Prior, false
	}
	st, ok := stats[value]
	if !ok {
		return e.Prior, false
	}
	return st.Code, true
}

// Covers reports whether the encoder was fitted on col.
func (e *TargetEncoder) Covers(col string) bool {
	_, ok := e.Stats[col]
	return ok
}

// Vocabulary lists the known values of col, sorted.
func (e *TargetEncoder) Vocabulary(col string) []string {
	stats := e.Stats[col]
	out := make([]string, 0, len(stats))
	for v := range stats {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Marshal serializes the fitted state for caching.
func (e *TargetEncoder) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEncoder restores an encoder written by Marshal.
func UnmarshalEncoder(data []byte) (*TargetEncoder, error) {
	var e TargetEncoder
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode encoder: %w", err)
	}
	if e.Stats == nil || e.Params.Smoothing <= 0 {
		return nil, fmt.Errorf("decode encoder: incomplete state")
	}
	return &e, nil
}
