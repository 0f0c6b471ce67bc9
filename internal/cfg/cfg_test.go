package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testEnvKeys = []string{
	"CONFIG_FILE", "DATASET_PATH", "DATASET_SCALE", "STATS_PATH", "STATS_SCALE", "DELIMITER",
	"MODEL_KIND", "MODEL_PATH", "MODEL_URL", "MODEL_INTERPRETER", "MODEL_SCRIPT", "MODEL_TIMEOUT",
	"ENCODER_MIN_SAMPLES_LEAF", "ENCODER_SMOOTHING", "UNSEEN_POLICY", "SNAPSHOT_PATH",
	"HTTP_PORT", "LOG_LEVEL", "SHUTDOWN_GRACE",
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range testEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name: "defaults with dataset path",
			envVars: map[string]string{
				"DATASET_PATH": "dados_carros.csv",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.DatasetPath != "dados_carros.csv" {
					t.Errorf("expected DatasetPath 'dados_carros.csv', got %s", settings.DatasetPath)
				}
				if settings.ModelKind != "forest" || settings.ModelPath != "model.json" {
					t.Errorf("expected default forest model.json, got %s %s", settings.ModelKind, settings.ModelPath)
				}
				if settings.MinSamplesLeaf != 20 || settings.Smoothing != 10 {
					t.Errorf("expected encoder defaults 20/10, got %f/%f", settings.MinSamplesLeaf, settings.Smoothing)
				}
				if settings.StatsScale != 1000 || settings.DatasetScale != 1 {
					t.Errorf("unexpected price scales %f/%f", settings.DatasetScale, settings.StatsScale)
				}
				if settings.UnseenPolicy != "fallback" {
					t.Errorf("expected fallback policy, got %s", settings.UnseenPolicy)
				}
				if settings.DelimiterRune() != ';' {
					t.Errorf("expected ';' delimiter, got %q", settings.DelimiterRune())
				}
				if settings.ModelTimeout != 5*time.Second {
					t.Errorf("expected ModelTimeout 5s, got %v", settings.ModelTimeout)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"DATASET_PATH":      "ref.csv",
				"DELIMITER":         ",",
				"MODEL_KIND":        "remote",
				"MODEL_URL":         "http://localhost:9000/predict",
				"MODEL_TIMEOUT":     "2s",
				"UNSEEN_POLICY":     "strict",
				"HTTP_PORT":         "9090",
				"ENCODER_SMOOTHING": "5",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelURL != "http://localhost:9000/predict" {
					t.Errorf("unexpected ModelURL %s", settings.ModelURL)
				}
				if settings.ModelTimeout != 2*time.Second {
					t.Errorf("expected ModelTimeout 2s, got %v", settings.ModelTimeout)
				}
				if settings.HTTPPort != 9090 {
					t.Errorf("expected HTTPPort 9090, got %d", settings.HTTPPort)
				}
				if settings.Smoothing != 5 {
					t.Errorf("expected Smoothing 5, got %f", settings.Smoothing)
				}
				if settings.DelimiterRune() != ',' {
					t.Errorf("expected ',' delimiter, got %q", settings.DelimiterRune())
				}
			},
		},
		{
			name:    "missing dataset path",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "remote model without URL",
			envVars: map[string]string{
				"DATASET_PATH": "ref.csv",
				"MODEL_KIND":   "remote",
			},
			wantErr: true,
		},
		{
			name: "unknown unseen policy",
			envVars: map[string]string{
				"DATASET_PATH":  "ref.csv",
				"UNSEEN_POLICY": "ignore",
			},
			wantErr: true,
		},
		{
			name: "privileged port",
			envVars: map[string]string{
				"DATASET_PATH": "ref.csv",
				"HTTP_PORT":    "80",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "full YAML",
			yamlContent: `
data:
  datasetPath: "dados_carros.csv"
  statsPath: "dados_carros_tratados.csv"
  statsScale: 1000
  delimiter: ";"
  snapshotPath: "carprice.db"
model:
  kind: "script"
  path: "modelo_carros.pkl"
  interpreter: "/usr/bin/python3"
  timeout: "10s"
encoder:
  minSamplesLeaf: 1
  smoothing: 1
  unseenPolicy: "strict"
system:
  httpPort: 8081
  logLevel: "debug"
  shutdownGrace: "3s"
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.StatsPath != "dados_carros_tratados.csv" {
					t.Errorf("unexpected StatsPath %s", settings.StatsPath)
				}
				if settings.ModelKind != "script" || settings.Interpreter != "/usr/bin/python3" {
					t.Errorf("unexpected model settings %s %s", settings.ModelKind, settings.Interpreter)
				}
				if settings.ModelTimeout != 10*time.Second {
					t.Errorf("expected ModelTimeout 10s, got %v", settings.ModelTimeout)
				}
				if settings.MinSamplesLeaf != 1 || settings.Smoothing != 1 {
					t.Errorf("unexpected encoder params %f/%f", settings.MinSamplesLeaf, settings.Smoothing)
				}
				if settings.UnseenPolicy != "strict" {
					t.Errorf("expected strict policy, got %s", settings.UnseenPolicy)
				}
				if settings.SnapshotPath != "carprice.db" {
					t.Errorf("unexpected SnapshotPath %s", settings.SnapshotPath)
				}
				if settings.HTTPPort != 8081 || settings.LogLevel != "debug" {
					t.Errorf("unexpected system settings %d %s", settings.HTTPPort, settings.LogLevel)
				}
				if settings.ShutdownGrace != 3*time.Second {
					t.Errorf("expected ShutdownGrace 3s, got %v", settings.ShutdownGrace)
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
data:
  datasetPath: "yaml.csv"
model:
  kind: "baseline"
`,
			envOverrides: map[string]string{
				"DATASET_PATH": "env.csv",
				"HTTP_PORT":    "9100",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.DatasetPath != "env.csv" {
					t.Errorf("expected env override DatasetPath 'env.csv', got %s", settings.DatasetPath)
				}
				if settings.ModelKind != "baseline" {
					t.Errorf("expected YAML ModelKind 'baseline', got %s", settings.ModelKind)
				}
				if settings.HTTPPort != 9100 {
					t.Errorf("expected env override HTTPPort 9100, got %d", settings.HTTPPort)
				}
			},
		},
		{
			name: "snapshot without dataset",
			yamlContent: `
data:
  snapshotPath: "carprice.db"
model:
  kind: "baseline"
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.DatasetPath != "" {
					t.Errorf("expected empty DatasetPath, got %s", settings.DatasetPath)
				}
			},
		},
		{
			name: "YAML missing data paths",
			yamlContent: `
model:
  kind: "baseline"
`,
			wantErr: true,
		},
		{
			name: "unknown model kind",
			yamlContent: `
data:
  datasetPath: "x.csv"
model:
  kind: "onnx"
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: `invalid: yaml: content: [`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write test config file: %v", err)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("env when no config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("DATASET_PATH", "env.csv")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.DatasetPath != "env.csv" {
			t.Errorf("expected DatasetPath 'env.csv', got %s", settings.DatasetPath)
		}
	})

	t.Run("YAML when config file set", func(t *testing.T) {
		clearTestEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := "data:\n  datasetPath: \"yaml.csv\"\nmodel:\n  kind: \"baseline\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write test config file: %v", err)
		}
		t.Setenv("CONFIG_FILE", configPath)

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.DatasetPath != "yaml.csv" {
			t.Errorf("expected DatasetPath 'yaml.csv', got %s", settings.DatasetPath)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil {
			t.Error("expected error but got none")
		}
	})
}

func TestValidateSettings(t *testing.T) {
	valid := func() Settings {
		return Settings{
			DatasetPath:    "ref.csv",
			DatasetScale:   1,
			StatsScale:     1000,
			Delimiter:      ";",
			ModelKind:      "baseline",
			ModelTimeout:   time.Second,
			MinSamplesLeaf: 20,
			Smoothing:      10,
			UnseenPolicy:   "fallback",
			HTTPPort:       8080,
			LogLevel:       "info",
			ShutdownGrace:  5 * time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(s *Settings)
		ok     bool
	}{
		{"valid", func(s *Settings) {}, true},
		{"no data source", func(s *Settings) { s.DatasetPath = "" }, true},
		{"multi-char delimiter", func(s *Settings) { s.Delimiter = ";;" }, false},
		{"zero scale", func(s *Settings) { s.StatsScale = 0 }, false},
		{"forest without path", func(s *Settings) { s.ModelKind = "forest" }, false},
		{"timeout too short", func(s *Settings) { s.ModelTimeout = time.Millisecond }, false},
		{"negative min samples", func(s *Settings) { s.MinSamplesLeaf = -1 }, false},
		{"zero smoothing", func(s *Settings) { s.Smoothing = 0 }, false},
		{"bad log level", func(s *Settings) { s.LogLevel = "verbose" }, false},
		{"grace too long", func(s *Settings) { s.ShutdownGrace = time.Hour }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := validateSettings(&s)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}
