package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DatasetPath    string
	DatasetScale   float64
	StatsPath      string
	StatsScale     float64
	Delimiter      string
	ModelKind      string
	ModelPath      string
	ModelURL       string
	Interpreter    string
	ModelScript    string
	ModelTimeout   time.Duration
	MinSamplesLeaf float64
	Smoothing      float64
	UnseenPolicy   string
	SnapshotPath   string
	HTTPPort       int
	LogLevel       string
	ShutdownGrace  time.Duration
}

type ConfigFile struct {
	Data struct {
		DatasetPath  string  `yaml:"datasetPath"`
		DatasetScale float64 `yaml:"datasetScale"`
		StatsPath    string  `yaml:"statsPath"`
		StatsScale   float64 `yaml:"statsScale"`
		Delimiter    string  `yaml:"delimiter"`
		SnapshotPath string  `yaml:"snapshotPath"`
	} `yaml:"data"`

	Model struct {
		Kind        string `yaml:"kind"`
		Path        string `yaml:"path"`
		URL         string `yaml:"url"`
		Interpreter string `yaml:"interpreter"`
		Script      string `yaml:"script"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"model"`

	Encoder struct {
		MinSamplesLeaf float64 `yaml:"minSamplesLeaf"`
		Smoothing      float64 `yaml:"smoothing"`
		UnseenPolicy   string  `yaml:"unseenPolicy"`
	} `yaml:"encoder"`

	System struct {
		HTTPPort      int    `yaml:"httpPort"`
		LogLevel      string `yaml:"logLevel"`
		ShutdownGrace string `yaml:"shutdownGrace"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment alone. A .env file in the working directory is applied first
// and never overrides variables already set.
func Load() (Settings, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	modelTimeout, err := time.ParseDuration(config.Model.Timeout)
	if err != nil {
		modelTimeout = 5 * time.Second
	}

	grace, err := time.ParseDuration(config.System.ShutdownGrace)
	if err != nil {
		grace = 10 * time.Second
	}

	settings := Settings{
		DatasetPath:    getEnvOrDefault("DATASET_PATH", config.Data.DatasetPath),
		DatasetScale:   getFloatFromEnvOrConfig("DATASET_SCALE", config.Data.DatasetScale, 1),
		StatsPath:      getEnvOrDefault("STATS_PATH", config.Data.StatsPath),
		StatsScale:     getFloatFromEnvOrConfig("STATS_SCALE", config.Data.StatsScale, 1000),
		Delimiter:      getEnvOrDefault("DELIMITER", orDefault(config.Data.Delimiter, ";")),
		ModelKind:      getEnvOrDefault("MODEL_KIND", orDefault(config.Model.Kind, "forest")),
		ModelPath:      getEnvOrDefault("MODEL_PATH", config.Model.Path),
		ModelURL:       getEnvOrDefault("MODEL_URL", config.Model.URL),
		Interpreter:    getEnvOrDefault("MODEL_INTERPRETER", config.Model.Interpreter),
		ModelScript:    getEnvOrDefault("MODEL_SCRIPT", config.Model.Script),
		ModelTimeout:   getDurationOrDefault("MODEL_TIMEOUT", modelTimeout),
		MinSamplesLeaf: getFloatFromEnvOrConfig("ENCODER_MIN_SAMPLES_LEAF", config.Encoder.MinSamplesLeaf, 20),
		Smoothing:      getFloatFromEnvOrConfig("ENCODER_SMOOTHING", config.Encoder.Smoothing, 10),
		UnseenPolicy:   getEnvOrDefault("UNSEEN_POLICY", orDefault(config.Encoder.UnseenPolicy, "fallback")),
		SnapshotPath:   getEnvOrDefault("SNAPSHOT_PATH", config.Data.SnapshotPath),
		HTTPPort:       getIntFromEnvOrConfig("HTTP_PORT", config.System.HTTPPort, 8080),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", orDefault(config.System.LogLevel, "info")),
		ShutdownGrace:  getDurationOrDefault("SHUTDOWN_GRACE", grace),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DatasetPath:    os.Getenv("DATASET_PATH"), // optional when a snapshot is configured
		DatasetScale:   getFloatOrDefault("DATASET_SCALE", 1),
		StatsPath:      os.Getenv("STATS_PATH"), // optional
		StatsScale:     getFloatOrDefault("STATS_SCALE", 1000),
		Delimiter:      getEnvOrDefault("DELIMITER", ";"),
		ModelKind:      getEnvOrDefault("MODEL_KIND", "forest"),
		ModelPath:      getEnvOrDefault("MODEL_PATH", "model.json"),
		ModelURL:       os.Getenv("MODEL_URL"),
		Interpreter:    os.Getenv("MODEL_INTERPRETER"),
		ModelScript:    os.Getenv("MODEL_SCRIPT"),
		ModelTimeout:   getDurationOrDefault("MODEL_TIMEOUT", 5*time.Second),
		MinSamplesLeaf: getFloatOrDefault("ENCODER_MIN_SAMPLES_LEAF", 20),
		Smoothing:      getFloatOrDefault("ENCODER_SMOOTHING", 10),
		UnseenPolicy:   getEnvOrDefault("UNSEEN_POLICY", "fallback"),
		SnapshotPath:   os.Getenv("SNAPSHOT_PATH"), // optional
		HTTPPort:       getIntOrDefault("HTTP_PORT", 8080),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		ShutdownGrace:  getDurationOrDefault("SHUTDOWN_GRACE", 10*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// DelimiterRune returns the first rune of the configured delimiter.
func (s *Settings) DelimiterRune() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return ';'
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range checks on configuration values. Data
// sources are optional here; commands that read reference data check for them.
func validateSettings(settings *Settings) error {
	if settings.DatasetScale <= 0 || settings.StatsScale <= 0 {
		return fmt.Errorf("price scales must be positive, got %f and %f", settings.DatasetScale, settings.StatsScale)
	}
	if len([]rune(settings.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", settings.Delimiter)
	}

	switch strings.ToLower(settings.ModelKind) {
	case "forest", "script":
		if settings.ModelPath == "" {
			return fmt.Errorf("model kind %s needs a model path", settings.ModelKind)
		}
	case "remote":
		if settings.ModelURL == "" {
			return fmt.Errorf("remote model needs a URL")
		}
	case "baseline":
	default:
		return fmt.Errorf("unknown model kind %q", settings.ModelKind)
	}

	if settings.ModelTimeout < 100*time.Millisecond || settings.ModelTimeout > 5*time.Minute {
		return fmt.Errorf("model timeout must be between 100ms and 5m, got %v", settings.ModelTimeout)
	}
	if settings.ShutdownGrace < time.Second || settings.ShutdownGrace > 5*time.Minute {
		return fmt.Errorf("shutdown grace must be between 1s and 5m, got %v", settings.ShutdownGrace)
	}

	if settings.MinSamplesLeaf < 0 {
		return fmt.Errorf("encoder min samples leaf cannot be negative, got %f", settings.MinSamplesLeaf)
	}
	if settings.Smoothing <= 0 {
		return fmt.Errorf("encoder smoothing must be positive, got %f", settings.Smoothing)
	}

	switch strings.ToLower(settings.UnseenPolicy) {
	case "fallback", "strict":
	default:
		return fmt.Errorf("unseen policy must be fallback or strict, got %q", settings.UnseenPolicy)
	}

	if settings.HTTPPort < 1024 || settings.HTTPPort > 65535 {
		return fmt.Errorf("HTTP port must be between 1024 and 65535, got %d", settings.HTTPPort)
	}

	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
