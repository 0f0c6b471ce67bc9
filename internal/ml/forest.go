package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// TreeNode is one node of a regression tree. Samples go left when
// features[Feature] <= Threshold.
type TreeNode struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a flat node list rooted at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// ForestFile is the on-disk form of a tree ensemble exported from training.
type ForestFile struct {
	Version     string   `json:"version"`
	Features    []string `json:"features"`
	Aggregation string   `json:"aggregation"` // mean (random forest) or sum (boosting)
	BaseScore   float64  `json:"base_score"`
	Trees       []Tree   `json:"trees"`
}

// ForestModel evaluates a regression-tree ensemble in process.
type ForestModel struct {
	file ForestFile
	info ModelInfo
}

// LoadForest reads and validates a forest file.
func LoadForest(path string) (*ForestModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}

	var f ForestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	m, err := NewForest(f)
	if err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}
	m.info.Source = path
	m.info.ModifiedAt = modTime(path)
	return m, nil
}

// NewForest validates an in-memory ensemble.
func NewForest(f ForestFile) (*ForestModel, error) {
	if len(f.Features) == 0 {
		return nil, fmt.Errorf("forest declares no features")
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	switch f.Aggregation {
	case "":
		f.Aggregation = "mean"
	case "mean", "sum":
	default:
		return nil, fmt.Errorf("unknown aggregation %q", f.Aggregation)
	}

	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return nil, fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// children after parents rules out cycles
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}

	return &ForestModel{
		file: f,
		info: ModelInfo{
			Kind:     KindForest,
			Version:  f.Version,
			Features: append([]string(nil), f.Features...),
			LoadedAt: time.Now(),
		},
	}, nil
}

// Predict walks every tree and aggregates the leaves.
func (m *ForestModel) Predict(_ context.Context, x []float64) (float64, error) {
	if len(x) != len(m.file.Features) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.file.Features), len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("feature %d (%s) is NaN", i, m.file.Features[i])
		}
	}

	var sum float64
	for _, t := range m.file.Trees {
		sum += walk(t, x)
	}
	if m.file.Aggregation == "mean" {
		sum /= float64(len(m.file.Trees))
	}
	return m.file.BaseScore + sum, nil
}

func walk(t Tree, x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Info describes the ensemble.
func (m *ForestModel) Info() ModelInfo { return m.info }
