package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteModel calls an HTTP inference endpoint that accepts
// {"features": [...], "columns": [...]} and answers {"prediction": x}.
type RemoteModel struct {
	url     string
	columns []string
	rest    *resty.Client
	info    ModelInfo
}

// NewRemoteModel configures a client for url. No request is made until Predict.
func NewRemoteModel(url string, timeout time.Duration, columns []string) (*RemoteModel, error) {
	if url == "" {
		return nil, fmt.Errorf("remote model needs a URL")
	}
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")

	return &RemoteModel{
		url:     url,
		columns: append([]string(nil), columns...),
		rest:    r,
		info: ModelInfo{
			Kind:     KindRemote,
			Source:   url,
			Features: append([]string(nil), columns...),
			LoadedAt: time.Now(),
		},
	}, nil
}

// Predict posts one feature vector.
func (m *RemoteModel) Predict(ctx context.Context, x []float64) (float64, error) {
	if len(x) != len(m.columns) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.columns), len(x))
	}

	result := &scriptResponse{}
	resp, err := m.rest.R().
		SetContext(ctx).
		SetBody(scriptRequest{Features: x, Columns: m.columns}).
		SetResult(result).
		SetError(result).
		Post(m.url)
	if err != nil {
		return 0, fmt.Errorf("remote model request: %w", err)
	}
	if resp.IsError() {
		if result.Error != "" {
			return 0, fmt.Errorf("remote model: %d %s", resp.StatusCode(), result.Error)
		}
		return 0, fmt.Errorf("remote model: status %d", resp.StatusCode())
	}
	if result.Error != "" {
		return 0, fmt.Errorf("remote model: %s", result.Error)
	}
	if result.Prediction == nil {
		return 0, fmt.Errorf("remote model response carries no prediction")
	}
	return *result.Prediction, nil
}

// Info describes the remote endpoint.
func (m *RemoteModel) Info() ModelInfo { return m.info }
