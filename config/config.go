package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

// MonitorConfig is the project configuration.
type MonitorConfig struct {
	Tracer    TracerConfig    `yaml:"tracer"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Detector  DetectorConfig  `yaml:"detector"`
	Ranker    RankerConfig    `yaml:"ranker"`
	RCA       RCAConfig       `yaml:"rca"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TracerConfig controls the external kernel tracer event source (C1).
type TracerConfig struct {
	Command      string        `yaml:"command"`
	Args         []string      `yaml:"args"`
	QueueSize    int           `yaml:"queue_size"`
	MaxClockSlew time.Duration `yaml:"max_clock_slew"`
}

// TelemetryConfig controls the rolling telemetry aggregator (C2).
type TelemetryConfig struct {
	HostWindowSeconds int           `yaml:"host_window_seconds"`
	PIDWindowSeconds  int           `yaml:"pid_window_seconds"`
	TickInterval      time.Duration `yaml:"tick_interval"`
	NumCores          int           `yaml:"num_cores"`
}

// DetectorConfig controls the spike detector (C3).
type DetectorConfig struct {
	BaselineSeconds        int     `yaml:"baseline_seconds"`
	ZThreshold             float64 `yaml:"z_threshold"`
	CPUFloor               float64 `yaml:"cpu_floor"`
	RAMFloor               float64 `yaml:"ram_floor"`
	PersistenceSamples     int     `yaml:"persistence_samples"`
	CooldownSamples        int     `yaml:"cooldown_samples"`
	CoolingSeconds         int     `yaml:"cooling_seconds"`
	MinIncidentGapSeconds  int     `yaml:"min_incident_gap_seconds"`
}

// RankerConfig controls the PID ranker (C4).
type RankerConfig struct {
	AttributionWindowSeconds int `yaml:"attribution_window_seconds"`
	TopK                     int `yaml:"top_k"`
}

// RCAConfig controls the RCA orchestrator and its LLM collaborator (C5).
type RCAConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIBaseURL     string        `yaml:"api_base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	TimeoutSeconds int           `yaml:"llm_timeout_seconds"`
	Retries        int           `yaml:"llm_retries"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffJitter  time.Duration `yaml:"backoff_jitter"`
	QueueDepth     int           `yaml:"queue_depth"`
	EventSampleMax int           `yaml:"event_sample_max"`
}

// StoreConfig controls the incident store (C6).
type StoreConfig struct {
	Retention int `yaml:"incident_retention"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with the defaults from spec §6.
func ApplyDefaults(cfg *Config) {
	m := &cfg.Monitor

	if m.Tracer.QueueSize <= 0 {
		m.Tracer.QueueSize = 64 * 1024
	}
	if m.Tracer.MaxClockSlew <= 0 {
		m.Tracer.MaxClockSlew = 2 * time.Second
	}

	if m.Telemetry.HostWindowSeconds <= 0 {
		m.Telemetry.HostWindowSeconds = 300
	}
	if m.Telemetry.PIDWindowSeconds <= 0 {
		m.Telemetry.PIDWindowSeconds = 120
	}
	if m.Telemetry.TickInterval <= 0 {
		m.Telemetry.TickInterval = time.Second
	}
	if m.Telemetry.NumCores <= 0 {
		m.Telemetry.NumCores = 1
	}

	if m.Detector.BaselineSeconds <= 0 {
		m.Detector.BaselineSeconds = 120
	}
	if m.Detector.ZThreshold <= 0 {
		m.Detector.ZThreshold = 3.0
	}
	if m.Detector.CPUFloor <= 0 {
		m.Detector.CPUFloor = 70
	}
	if m.Detector.RAMFloor <= 0 {
		m.Detector.RAMFloor = 80
	}
	if m.Detector.PersistenceSamples <= 0 {
		m.Detector.PersistenceSamples = 3
	}
	if m.Detector.CooldownSamples <= 0 {
		m.Detector.CooldownSamples = 5
	}
	if m.Detector.CoolingSeconds <= 0 {
		m.Detector.CoolingSeconds = 30
	}
	if m.Detector.MinIncidentGapSeconds <= 0 {
		m.Detector.MinIncidentGapSeconds = 60
	}

	if m.Ranker.AttributionWindowSeconds <= 0 {
		m.Ranker.AttributionWindowSeconds = 60
	}
	if m.Ranker.TopK <= 0 {
		m.Ranker.TopK = 10
	}

	if m.RCA.TimeoutSeconds <= 0 {
		m.RCA.TimeoutSeconds = 20
	}
	if m.RCA.Retries == 0 {
		m.RCA.Retries = 2
	}
	if m.RCA.BackoffBase <= 0 {
		m.RCA.BackoffBase = 2 * time.Second
	}
	if m.RCA.BackoffJitter <= 0 {
		m.RCA.BackoffJitter = 500 * time.Millisecond
	}
	if m.RCA.QueueDepth <= 0 {
		m.RCA.QueueDepth = 16
	}
	if m.RCA.EventSampleMax <= 0 {
		m.RCA.EventSampleMax = 500
	}
	if m.RCA.Model == "" {
		m.RCA.Model = "gpt-4o-mini"
	}

	if m.Store.Retention <= 0 {
		m.Store.Retention = 200
	}

	if m.Logging.Level == "" {
		m.Logging.Level = "info"
	}
}
