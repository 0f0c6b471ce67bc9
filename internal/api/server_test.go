package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carprice/internal/dataset"
	"carprice/internal/features"
	"carprice/internal/metrics"
	"carprice/internal/ml"
	"carprice/internal/pipeline"
	"carprice/internal/stats"
	"carprice/internal/vehicle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reference(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]string{"modelo", "combustivel", "ano", "km", "cor", "cambio", "cidade", "preco", "freios ABS", "ar-condicionado"},
		[][]string{
			{"Gol", "Flex", "2014", "50000", "Branco", "0", "Curitiba", "40000", "1", "1"},
			{"Gol", "Flex", "2015", "30000", "Preto", "0", "Curitiba", "50000", "0", "1"},
			{"Onix", "Flex", "2020", "10000", "Branco", "1", "Londrina", "80000", "1", "0"},
			{"Onix", "Gasolina", "2021", "5000", "Prata", "1", "Londrina", "90000", "1", "1"},
		},
		dataset.DefaultOptions(),
	)
	require.NoError(t, err)
	return ds
}

type fixture struct {
	server   *Server
	handler  http.Handler
	model    ml.Model
	registry *prometheus.Registry
}

func newFixture(t *testing.T, model ml.Model, policy features.UnseenPolicy, withStats bool) *fixture {
	t.Helper()
	ds := reference(t)
	enc, err := features.FitEncoder(ds, []string{"modelo", "combustivel", "cor", "cidade"}, features.EncoderParams{MinSamplesLeaf: 1, Smoothing: 1})
	require.NoError(t, err)
	tr, err := features.NewTransformer(vehicle.DefaultSchema(), enc, policy)
	require.NoError(t, err)

	if model == nil {
		model, err = ml.NewBaselineModel(tr.Schema())
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	mw := metrics.NewWrapper(metrics.NewWithRegistry(reg))
	pipe, err := pipeline.New(tr, ml.NewPredictor(model, mw), mw)
	require.NoError(t, err)

	var st *stats.Stats
	if withStats {
		st, err = stats.New(ds)
		require.NoError(t, err)
	}

	s := NewServer(pipe, st, dataset.ChoicesFrom(ds), mw, Options{Port: 8080, Gatherer: reg})
	return &fixture{server: s, handler: s.Handler(), model: model, registry: reg}
}

func validBody() map[string]any {
	return map[string]any{
		"modelo": "Gol", "combustivel": "Flex", "ano": 2015, "km": 50000,
		"cor": "Branco", "cambio": 0, "cidade": "Curitiba", "motor": "1.0",
		"freios ABS": true,
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPredict_OK(t *testing.T) {
	f := newFixture(t, nil, features.UnseenFallback, false)

	rec := do(t, f.handler, http.MethodPost, "/predict", validBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Greater(t, resp.Price, 0.0)
	assert.Regexp(t, `^R\$\d{1,3}(,\d{3})*\.\d{2}$`, resp.Formatted)
	assert.Equal(t, ml.KindBaseline, resp.ModelKind)
}

func TestPredict_ValidationNeverInvokesModel(t *testing.T) {
	stub := &ml.StubModel{Output: 10}
	f := newFixture(t, stub, features.UnseenFallback, false)

	body := validBody()
	delete(body, "cidade")
	body["modelo"] = "   "

	rec := do(t, f.handler, http.MethodPost, "/predict", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, pipeline.KindValidation, resp.Kind)
	assert.Contains(t, resp.Message, pipeline.MsgValidation)
	assert.ElementsMatch(t, []string{"modelo", "cidade"}, resp.Fields)
	assert.Zero(t, stub.CallCount())
}

func TestPredict_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		model    ml.Model
		policy   features.UnseenPolicy
		body     any
		wantCode int
		wantKind string
	}{
		{
			name:     "malformed JSON",
			body:     `{"modelo":`,
			wantCode: http.StatusBadRequest,
			wantKind: pipeline.KindSchemaMismatch,
		},
		{
			name: "unknown field",
			body: func() map[string]any {
				b := validBody()
				b["teto solar"] = true
				return b
			}(),
			wantCode: http.StatusBadRequest,
			wantKind: pipeline.KindSchemaMismatch,
		},
		{
			name: "negative mileage below log1p domain",
			body: func() map[string]any {
				b := validBody()
				b["km"] = -2
				return b
			}(),
			wantCode: http.StatusBadRequest,
			wantKind: pipeline.KindDomain,
		},
		{
			name: "mileage of -1 has no finite log",
			body: func() map[string]any {
				b := validBody()
				b["km"] = -1
				return b
			}(),
			wantCode: http.StatusBadRequest,
			wantKind: pipeline.KindDomain,
		},
		{
			name:   "unseen city under strict policy",
			policy: features.UnseenStrict,
			body: func() map[string]any {
				b := validBody()
				b["cidade"] = "Manaus"
				return b
			}(),
			wantCode: http.StatusBadRequest,
			wantKind: pipeline.KindUnseenCategory,
		},
		{
			name:     "model failure",
			model:    &ml.StubModel{Err: errors.New("feature shape mismatch")},
			body:     validBody(),
			wantCode: http.StatusInternalServerError,
			wantKind: pipeline.KindModelInvocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.model, tt.policy, false)
			rec := do(t, f.handler, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, resp.Kind)
			if tt.wantCode == http.StatusInternalServerError {
				assert.Equal(t, pipeline.MsgFailure, resp.Message)
				assert.NotContains(t, resp.Message, "shape")
			}
		})
	}
}

func TestPredict_RateLimited(t *testing.T) {
	f := newFixture(t, nil, features.UnseenFallback, false)
	s := NewServer(f.server.pipe, nil, dataset.Choices{}, nil, Options{RateLimit: 0.001, Burst: 1})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/predict", validBody()).Code)
	rec := do(t, h, http.MethodPost, "/predict", validBody())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestReadEndpoints(t *testing.T) {
	f := newFixture(t, nil, features.UnseenFallback, true)

	t.Run("choices", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodGet, "/choices", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var c dataset.Choices
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
		assert.Contains(t, c.Modelos, "Onix")
	})

	t.Run("schema", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodGet, "/schema", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var fields []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
		assert.Len(t, fields, 29)
		assert.Equal(t, "modelo", fields[0]["name"])
	})

	t.Run("health", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("model info", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodGet, "/model/info", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"baseline"`)
		assert.Contains(t, rec.Body.String(), `"unseen_policy":"fallback"`)
	})
}

func TestStatsEndpoints(t *testing.T) {
	f := newFixture(t, nil, features.UnseenFallback, true)

	rec := do(t, f.handler, http.MethodGet, "/stats/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum stats.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 4, sum.Vehicles)
	assert.Equal(t, 65000.0, sum.MeanPrice)

	rec = do(t, f.handler, http.MethodGet, "/stats/options?n=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var counts []stats.Count
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, []stats.Count{{Name: "ar-condicionado", Count: 3}}, counts)

	rec = do(t, f.handler, http.MethodGet, "/stats/correlation?columns=preco|ano", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"columns":["preco","ano"]`)

	assert.Equal(t, http.StatusNotFound, do(t, f.handler, http.MethodGet, "/stats/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, f.handler, http.MethodGet, "/stats/options?n=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, f.handler, http.MethodGet, "/stats/option-delta?option=teto", nil).Code)

	noStats := newFixture(t, nil, features.UnseenFallback, false)
	assert.Equal(t, http.StatusNotFound, do(t, noStats.handler, http.MethodGet, "/stats/summary", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil, features.UnseenFallback, false)

	do(t, f.handler, http.MethodPost, "/predict", validBody())
	body := validBody()
	delete(body, "ano")
	do(t, f.handler, http.MethodPost, "/predict", body)
	unknown := validBody()
	unknown["teto solar"] = true
	do(t, f.handler, http.MethodPost, "/predict", unknown)
	do(t, f.handler, http.MethodPost, "/predict", `{"modelo":`)

	n, err := testutil.GatherAndCount(f.registry, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one series per route and status")

	rec := do(t, f.handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prediction_requests_total 4")
	assert.Contains(t, rec.Body.String(), "prediction_validation_failures_total 1")
	assert.Contains(t, rec.Body.String(), `prediction_errors_total{kind="schema_mismatch"} 2`)
}
