// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "voxchord"
	configFileName = "config.json"

	// EnvPath overrides the config file location.
	EnvPath = "VOXCHORD_CONFIG"
)

// Recording mode preferences.
const (
	ModeAuto   = "auto"
	ModeHold   = "hold"
	ModeToggle = "toggle"
)

// Config represents the application configuration.
type Config struct {
	// Activation
	Chord           string `json:"chord" yaml:"chord"`
	RecordingMode   string `json:"recording_mode" yaml:"recording_mode"`
	HoldThresholdMS int    `json:"hold_threshold_ms" yaml:"hold_threshold_ms"`
	DebounceMS      int    `json:"debounce_ms" yaml:"debounce_ms"`

	// Capture
	DeviceID      string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	SampleRate    int    `json:"sample_rate" yaml:"sample_rate"`
	MinDurationMS int    `json:"min_duration_ms" yaml:"min_duration_ms"`

	// Conditioning
	NoiseGate            bool    `json:"noise_gate" yaml:"noise_gate"`
	NoiseGateThresholdDB float64 `json:"noise_gate_threshold_db" yaml:"noise_gate_threshold_db"`
	NoiseGateRelativeDB  float64 `json:"noise_gate_relative_db" yaml:"noise_gate_relative_db"`
	VAD                  bool    `json:"vad" yaml:"vad"`
	VADAggressiveness    int     `json:"vad_aggressiveness" yaml:"vad_aggressiveness"`
	Normalize            bool    `json:"normalize" yaml:"normalize"`
	TargetDBFS           float64 `json:"target_dbfs" yaml:"target_dbfs"`

	// Recognition
	Language   string     `json:"language,omitempty" yaml:"language,omitempty"`
	Recognizer Recognizer `json:"recognizer" yaml:"recognizer"`

	// Calling layer
	History      History `json:"history" yaml:"history"`
	Notification bool    `json:"notification" yaml:"notification"`
	LogLevel     string  `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	path string
}

// Recognizer configures the speech recognition engine.
type Recognizer struct {
	Type    string `json:"type" yaml:"type"` // "openai", "openai-compatible"
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Prompt  string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// History configures the transcript history store.
type History struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	KeepAudio bool `json:"keep_audio" yaml:"keep_audio"`
	TTLDays   int  `json:"ttl_days" yaml:"ttl_days"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Chord:                "ctrl+alt",
		RecordingMode:        ModeAuto,
		HoldThresholdMS:      250,
		DebounceMS:           500,
		SampleRate:           16000,
		MinDurationMS:        300,
		NoiseGate:            true,
		NoiseGateThresholdDB: -45,
		NoiseGateRelativeDB:  -30,
		VAD:                  true,
		VADAggressiveness:    2,
		Normalize:            true,
		TargetDBFS:           -20,
		Recognizer: Recognizer{
			Type:  "openai",
			Model: "whisper-1",
		},
		History: History{
			Enabled: true,
			TTLDays: 30,
		},
		Notification: true,
		LogLevel:     "info",
	}
}

// Load loads configuration from the default location.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path. JSON is assumed unless the file
// has a .yaml or .yml extension. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, isYAML(path))
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse decodes and validates configuration bytes. Fields absent from data
// keep their defaults.
func Parse(data []byte, yamlFormat bool) (*Config, error) {
	cfg := Default()
	if yamlFormat {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := Path()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.path = path
	return nil
}

// FilePath returns the file the config was loaded from or will be saved to.
func (c *Config) FilePath() string {
	return c.path
}

// Path returns the config file location, honoring VOXCHORD_CONFIG.
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Derived values
// ─────────────────────────────────────────────────────────────────────────────

// HoldThreshold returns the hold-vs-tap boundary.
func (c *Config) HoldThreshold() time.Duration {
	return time.Duration(c.HoldThresholdMS) * time.Millisecond
}

// Debounce returns the re-engage suppression window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// MinDuration returns the shortest recording worth transcribing.
func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.MinDurationMS) * time.Millisecond
}

// HistoryTTL returns how long history entries are retained. Zero means forever.
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.History.TTLDays) * 24 * time.Hour
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Chord) == "" {
		errs = append(errs, errors.New("chord required"))
	}
	switch cfg.RecordingMode {
	case ModeAuto, ModeHold, ModeToggle:
	default:
		errs = append(errs, fmt.Errorf("invalid recording_mode %q (allowed: auto, hold, toggle)", cfg.RecordingMode))
	}
	if cfg.HoldThresholdMS < 0 {
		errs = append(errs, fmt.Errorf("invalid hold_threshold_ms: %d", cfg.HoldThresholdMS))
	}
	if cfg.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("invalid debounce_ms: %d", cfg.DebounceMS))
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("invalid sample_rate: %d (allowed 8000..192000)", cfg.SampleRate))
	}
	if cfg.VADAggressiveness < 0 || cfg.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("invalid vad_aggressiveness: %d (allowed 0..3)", cfg.VADAggressiveness))
	}
	if cfg.NoiseGateThresholdDB > 0 || cfg.NoiseGateRelativeDB > 0 {
		errs = append(errs, errors.New("noise gate thresholds must be <= 0 dB"))
	}
	if cfg.TargetDBFS > 0 {
		errs = append(errs, fmt.Errorf("invalid target_dbfs: %v (must be <= 0)", cfg.TargetDBFS))
	}
	if cfg.Language != "" && cfg.Language != "auto" {
		if _, err := language.Parse(cfg.Language); err != nil {
			errs = append(errs, fmt.Errorf("invalid language %q: %w", cfg.Language, err))
		}
	}
	if cfg.Recognizer.Type == "openai-compatible" && cfg.Recognizer.BaseURL == "" {
		errs = append(errs, errors.New("base url required for openai-compatible recognizer"))
	}
	if cfg.History.TTLDays < 0 {
		errs = append(errs, fmt.Errorf("invalid history.ttl_days: %d", cfg.History.TTLDays))
	}

	return errors.Join(errs...)
}

// RequiresIdle reports whether moving from old to c changes settings that
// can only be applied while no capture is running.
func (c *Config) RequiresIdle(old *Config) bool {
	if old == nil {
		return false
	}
	return c.DeviceID != old.DeviceID || c.SampleRate != old.SampleRate
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Chord == "" {
		c.Chord = d.Chord
	}
	if c.RecordingMode == "" {
		c.RecordingMode = d.RecordingMode
	}
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Recognizer.Type == "" {
		c.Recognizer.Type = d.Recognizer.Type
	}
	if c.Recognizer.Model == "" {
		c.Recognizer.Model = d.Recognizer.Model
	}
	c.RecordingMode = strings.ToLower(c.RecordingMode)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
