package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ScriptModel runs a serialized model through an external interpreter. Each
// invocation starts the inference script, writes one JSON request to stdin and
// reads one JSON response from stdout.
type ScriptModel struct {
	interpreter string
	script      string
	modelPath   string
	columns     []string
	timeout     time.Duration
	info        ModelInfo
}

type scriptRequest struct {
	Features []float64 `json:"features"`
	Columns  []string  `json:"columns"`
}

type scriptResponse struct {
	Prediction *float64 `json:"prediction"`
	Error      string   `json:"error,omitempty"`
}

// NewScriptModel locates the interpreter, prepares the inference script and
// runs one health-check prediction.
func NewScriptModel(ctx context.Context, cfg ModelConfig, columns []string) (*ScriptModel, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", cfg.Path, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	interpreter := cfg.Interpreter
	if interpreter == "" {
		found, err := findPython()
		if err != nil {
			return nil, err
		}
		interpreter = found
	}

	script := cfg.Script
	if script == "" {
		script = filepath.Join(filepath.Dir(cfg.Path), "carprice_inference.py")
		if _, err := os.Stat(script); os.IsNotExist(err) {
			if err := createInferenceScript(script); err != nil {
				return nil, fmt.Errorf("failed to create inference script: %w", err)
			}
			log.Info().Str("script_path", script).Msg("Wrote embedded inference script")
		}
	}

	m := &ScriptModel{
		interpreter: interpreter,
		script:      script,
		modelPath:   cfg.Path,
		columns:     append([]string(nil), columns...),
		timeout:     cfg.Timeout,
		info: ModelInfo{
			Kind:       KindScript,
			Source:     cfg.Path,
			Features:   append([]string(nil), columns...),
			LoadedAt:   time.Now(),
			ModifiedAt: modTime(cfg.Path),
		},
	}

	if err := m.healthCheck(ctx); err != nil {
		return nil, fmt.Errorf("model health check failed: %w", err)
	}
	return m, nil
}

// Predict runs the inference script once.
func (m *ScriptModel) Predict(ctx context.Context, x []float64) (float64, error) {
	if len(x) != len(m.columns) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.columns), len(x))
	}

	reqJSON, err := json.Marshal(scriptRequest{Features: x, Columns: m.columns})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.interpreter, m.script, m.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("interpreter", m.interpreter).
			Str("script_path", m.script).
			Str("model_path", m.modelPath).
			Str("stderr", stderr.String()).
			Dur("timeout", m.timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("Inference script failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("prediction timeout after %v", m.timeout)
		}
		if msg := responseError(stdout.Bytes()); msg != "" {
			return 0, fmt.Errorf("inference error: %s", msg)
		}
		return 0, fmt.Errorf("inference script failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp scriptResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("inference error: %s", resp.Error)
	}
	if resp.Prediction == nil {
		return 0, fmt.Errorf("response carries no prediction")
	}

	log.Debug().Float64("prediction", *resp.Prediction).Msg("Script prediction")
	return *resp.Prediction, nil
}

// Info describes the script-backed model.
func (m *ScriptModel) Info() ModelInfo { return m.info }

func (m *ScriptModel) healthCheck(ctx context.Context) error {
	probe := make([]float64, len(m.columns))
	y, err := m.Predict(ctx, probe)
	if err != nil {
		return err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("non-finite probe prediction %v", y)
	}
	return nil
}

func responseError(stdout []byte) string {
	var resp scriptResponse
	if json.Unmarshal(stdout, &resp) != nil {
		return ""
	}
	return resp.Error
}

// findPython prefers an active or project virtualenv, then the system interpreters.
func findPython() (string, error) {
	var candidates []string
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates,
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "bin", "python"),
			filepath.Join(venv, "Scripts", "python.exe"),
		)
	}
	if wd, err := os.Getwd(); err == nil {
		for _, dir := range []string{"venv", ".venv"} {
			candidates = append(candidates,
				filepath.Join(wd, dir, "bin", "python3"),
				filepath.Join(wd, dir, "bin", "python"),
			)
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			log.Info().Str("python_path", c).Msg("Using virtual environment Python")
			return c, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}
	return "", fmt.Errorf("no Python interpreter found; set ml.interpreter")
}

func createInferenceScript(path string) error {
	script := `#!/usr/bin/env python3
"""Price model inference: one JSON request on stdin, one JSON response on stdout."""
import json
import pickle
import sys


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: carprice_inference.py <model_path>"}))
        sys.exit(1)

    try:
        request = json.load(sys.stdin)
        with open(sys.argv[1], "rb") as fh:
            model = pickle.load(fh)

        row = [request["features"]]
        columns = request.get("columns")
        try:
            import pandas as pd
            row = pd.DataFrame(row, columns=columns)
            expected = getattr(model, "feature_names_in_", None)
            if expected is not None and columns:
                missing = [c for c in expected if c not in row.columns]
                if missing:
                    raise ValueError("model expects columns not sent: %s" % missing)
                row = row[list(expected)]
        except ImportError:
            pass

        prediction = float(model.predict(row)[0])
        print(json.dumps({"prediction": prediction}))
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`
	return os.WriteFile(path, []byte(script), 0o755)
}
