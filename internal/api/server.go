// Package api serves price predictions and the statistics panels over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carprice/internal/dataset"
	"carprice/internal/metrics"
	"carprice/internal/pipeline"
	"carprice/internal/stats"
	"carprice/internal/vehicle"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 64 << 10

// Options tunes the HTTP server.
type Options struct {
	Port           int
	PredictTimeout time.Duration // bound on one pipeline run; 5s when zero
	RateLimit      float64       // predictions per second; unlimited when zero
	Burst          int
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer // registry served on /metrics; the default one when nil
}

// Server provides the HTTP API for price predictions.
type Server struct {
	pipe    *pipeline.Pipeline
	stats   *stats.Stats
	choices dataset.Choices
	metrics *metrics.MetricsWrapper
	limiter *rate.Limiter
	opt     Options
	started time.Time
	server  *http.Server
}

// PredictionResponse is the body of a successful prediction.
type PredictionResponse struct {
	ID        string    `json:"id"`
	Price     float64   `json:"price"`
	Formatted string    `json:"formatted"`
	ModelKind string    `json:"model_kind"`
	Latency   float64   `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// NewServer wires the routes. st may be nil when no statistics dataset is
// configured; mw may be nil.
func NewServer(pipe *pipeline.Pipeline, st *stats.Stats, choices dataset.Choices, mw *metrics.MetricsWrapper, opt Options) *Server {
	if opt.PredictTimeout <= 0 {
		opt.PredictTimeout = 5 * time.Second
	}
	s := &Server{
		pipe:    pipe,
		stats:   st,
		choices: choices,
		metrics: mw,
		opt:     opt,
		started: time.Now(),
	}
	if opt.RateLimit > 0 {
		burst := opt.Burst
		if burst <= 0 {
			burst = int(opt.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opt.RateLimit), burst)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opt.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	if len(s.opt.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opt.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.With(s.throttle).Post("/predict", s.handlePredict)
	r.Get("/choices", s.handleChoices)
	r.Get("/schema", s.handleSchema)
	r.Get("/health", s.handleHealth)
	r.Get("/model/info", s.handleModelInfo)
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", s.handlePanels)
		r.Get("/{panel}", s.handlePanel)
	})

	gatherer := s.opt.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting prediction server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		s.pipe.Reject(vehicle.ErrSchemaMismatch)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:    pipeline.KindSchemaMismatch,
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	rec, err := s.pipe.Schema().RecordFromMap(body)
	if err != nil {
		s.pipe.Reject(err)
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opt.PredictTimeout)
	defer cancel()

	res, err := s.pipe.Run(ctx, rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		ID:        res.ID,
		Price:     res.Price,
		Formatted: res.Formatted,
		ModelKind: s.pipe.Predictor().Model().Info().Kind,
		Latency:   float64(time.Since(start).Microseconds()) / 1000,
		Timestamp: time.Now().UTC(),
	})
}

// writeError maps error kinds to status codes. Caller mistakes keep their
// detail; server-side failures get the generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := pipeline.Kind(err)
	resp := ErrorResponse{Kind: kind}
	status := http.StatusInternalServerError

	switch kind {
	case pipeline.KindValidation:
		status = http.StatusUnprocessableEntity
		resp.Message = pipeline.Describe(s.pipe.Schema(), err)
		var ve *vehicle.ValidationError
		if errors.As(err, &ve) {
			resp.Fields = ve.Missing
		}
	case pipeline.KindSchemaMismatch, pipeline.KindDomain, pipeline.KindUnseenCategory:
		status = http.StatusBadRequest
		resp.Message = err.Error()
	default:
		resp.Message = pipeline.MsgFailure
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Prediction failed")
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleChoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.choices)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Schema().Fields())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"model":      s.pipe.Predictor().Model().Info().Kind,
		"statistics": s.stats != nil,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	enc := s.pipe.Transformer().Encoder()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model": s.pipe.Predictor().Model().Info(),
		"encoder": map[string]interface{}{
			"columns":       enc.Columns,
			"prior":         enc.Prior,
			"rows":          enc.Rows,
			"fingerprint":   enc.Fingerprint,
			"fitted_at":     enc.FittedAt,
			"params":        enc.Params,
			"unseen_policy": s.pipe.Transformer().Policy(),
		},
	})
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stats.Panels())
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Kind: "not_found", Message: "statistics dataset not loaded"})
		return
	}

	name := chi.URLParam(r, "panel")
	params, err := panelParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Kind: "bad_request", Message: err.Error()})
		return
	}

	v, err := s.stats.Panel(name, params)
	switch {
	case errors.Is(err, stats.ErrUnknownPanel):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Kind: "not_found", Message: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Kind: "bad_request", Message: err.Error()})
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func panelParams(r *http.Request) (stats.PanelParams, error) {
	q := r.URL.Query()
	var p stats.PanelParams
	for key, dst := range map[string]*int{"n": &p.N, "from": &p.From, "to": &p.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("query parameter %s: not an integer: %q", key, v)
		}
		*dst = i
	}
	p.Option = q.Get("option")
	p.Options = splitList(q.Get("options"))
	p.Columns = splitList(q.Get("columns"))
	return p, nil
}

// splitList splits on '|' since option column names may contain commas.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, "|")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
