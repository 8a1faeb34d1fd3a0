// Package config provides application settings from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds all application configuration.
type Settings struct {
	// Inference provider
	Provider                string  `yaml:"provider"`
	FastModel               string  `yaml:"fast_model"`
	DeepModel               string  `yaml:"deep_model"`
	MaxTokens               uint32  `yaml:"max_tokens"`
	Temperature             float64 `yaml:"temperature"`
	InferenceTimeoutSeconds int     `yaml:"inference_timeout_seconds"`

	// Escalation policy
	EscalationThreshold   int `yaml:"escalation_threshold"`
	PressureLimit         int `yaml:"pressure_limit"`
	PressureWindowMinutes int `yaml:"pressure_window_minutes"`
	ConfidenceThreshold   int `yaml:"confidence_threshold"`

	// Temporal context
	ContextWindowSize  int `yaml:"context_window_size"`
	ContextWindowBytes int `yaml:"context_window_bytes"`

	// Reasoning state
	StateRetentionHours int `yaml:"state_retention_hours"`
	StateSweepMinutes   int `yaml:"state_sweep_minutes"`

	// Storage and delivery
	EvidenceDir  string `yaml:"evidence_dir"`
	DatabasePath string `yaml:"database_path"`
	NATSURL      string `yaml:"nats_url"`
	IoTEnabled   bool   `yaml:"iot_enabled"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	// Watch loop
	SampleIntervalSeconds int `yaml:"sample_interval_seconds"`
}

func defaults() Settings {
	return Settings{
		Provider:                "gemini",
		MaxTokens:               1024,
		Temperature:             0.4,
		InferenceTimeoutSeconds: 30,
		EscalationThreshold:     70,
		PressureLimit:           3,
		PressureWindowMinutes:   10,
		ConfidenceThreshold:     70,
		ContextWindowSize:       10,
		ContextWindowBytes:      4096,
		StateRetentionHours:     24,
		StateSweepMinutes:       5,
		EvidenceDir:             "evidence",
		DatabasePath:            "aegis.db",
		MetricsAddr:             ":9402",
		LogLevel:                "info",
		SampleIntervalSeconds:   2,
	}
}

// Load builds settings from defaults, the YAML file at path (skipped when
// empty or missing), and environment variables.
func Load(path string) (Settings, error) {
	s := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("invalid config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	getEnvString("AEGIS_PROVIDER", &s.Provider)
	getEnvString("AEGIS_FAST_MODEL", &s.FastModel)
	getEnvString("AEGIS_DEEP_MODEL", &s.DeepModel)
	getEnvString("AEGIS_EVIDENCE_DIR", &s.EvidenceDir)
	getEnvString("AEGIS_DB_PATH", &s.DatabasePath)
	getEnvString("AEGIS_NATS_URL", &s.NATSURL)
	getEnvString("AEGIS_METRICS_ADDR", &s.MetricsAddr)
	getEnvString("AEGIS_LOG_LEVEL", &s.LogLevel)

	for _, v := range []struct {
		key  string
		dest *int
	}{
		{"AEGIS_INFERENCE_TIMEOUT_SECONDS", &s.InferenceTimeoutSeconds},
		{"AEGIS_ESCALATION_THRESHOLD", &s.EscalationThreshold},
		{"AEGIS_PRESSURE_LIMIT", &s.PressureLimit},
		{"AEGIS_PRESSURE_WINDOW_MINUTES", &s.PressureWindowMinutes},
		{"AEGIS_CONFIDENCE_THRESHOLD", &s.ConfidenceThreshold},
		{"AEGIS_CONTEXT_WINDOW_SIZE", &s.ContextWindowSize},
		{"AEGIS_CONTEXT_WINDOW_BYTES", &s.ContextWindowBytes},
		{"AEGIS_STATE_RETENTION_HOURS", &s.StateRetentionHours},
		{"AEGIS_STATE_SWEEP_MINUTES", &s.StateSweepMinutes},
		{"AEGIS_SAMPLE_INTERVAL_SECONDS", &s.SampleIntervalSeconds},
	} {
		if err := getEnvInt(v.key, v.dest); err != nil {
			return err
		}
	}

	if err := getEnvUint32("AEGIS_MAX_TOKENS", &s.MaxTokens); err != nil {
		return err
	}
	if err := getEnvFloat64("AEGIS_TEMPERATURE", &s.Temperature); err != nil {
		return err
	}
	if err := getEnvBool("AEGIS_IOT_ENABLED", &s.IoTEnabled); err != nil {
		return err
	}
	return nil
}

func (s *Settings) validate() error {
	if s.EscalationThreshold < 0 || s.EscalationThreshold > 100 {
		return fmt.Errorf("escalation threshold must be in [0,100], got %d", s.EscalationThreshold)
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence threshold must be in [0,100], got %d", s.ConfidenceThreshold)
	}
	if s.ContextWindowSize <= 0 {
		return fmt.Errorf("context window size must be positive, got %d", s.ContextWindowSize)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %f", s.Temperature)
	}
	return nil
}

// InferenceTimeout returns the per-call timeout.
func (s Settings) InferenceTimeout() time.Duration {
	return time.Duration(s.InferenceTimeoutSeconds) * time.Second
}

// PressureWindow returns the trailing window for incident pressure.
func (s Settings) PressureWindow() time.Duration {
	return time.Duration(s.PressureWindowMinutes) * time.Minute
}

// StateRetention returns how long unused reasoning state survives.
func (s Settings) StateRetention() time.Duration {
	return time.Duration(s.StateRetentionHours) * time.Hour
}

// StateSweepInterval returns how often expired reasoning state is collected.
func (s Settings) StateSweepInterval() time.Duration {
	return time.Duration(s.StateSweepMinutes) * time.Minute
}

// SampleInterval returns the watch-loop polling interval.
func (s Settings) SampleInterval() time.Duration {
	return time.Duration(s.SampleIntervalSeconds) * time.Second
}

// Environment variable helpers with proper error handling

func getEnvString(key string, dest *string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

func getEnvInt(key string, dest *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	*dest = i
	return nil
}

func getEnvUint32(key string, dest *uint32) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	*dest = uint32(i)
	return nil
}

func getEnvFloat64(key string, dest *float64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	*dest = f
	return nil
}

func getEnvBool(key string, dest *bool) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	*dest = b
	return nil
}
