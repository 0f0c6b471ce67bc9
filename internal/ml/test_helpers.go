package ml

import (
	"context"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    int
	latencySum  float64
	modelAge    float64
	prices      []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPriceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, v)
}

// Counts returns predictions and failures seen so far.
func (m *MockMetrics) Counts() (predictions, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures
}

// StubModel returns a fixed log-space output and counts invocations.
type StubModel struct {
	mu     sync.Mutex
	Output float64
	Err    error
	Calls  int
}

func (s *StubModel) Predict(_ context.Context, _ []float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	return s.Output, s.Err
}

func (s *StubModel) Info() ModelInfo {
	return ModelInfo{Kind: "stub"}
}

// CallCount returns how often Predict ran.
func (s *StubModel) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}
