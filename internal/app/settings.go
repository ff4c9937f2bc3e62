package app

import (
	"log/slog"
	"strings"

	"go.aimuz.me/voxchord/conditioner"
	"go.aimuz.me/voxchord/config"
	"go.aimuz.me/voxchord/hotkey"
	"go.aimuz.me/voxchord/recording"
	"go.aimuz.me/voxchord/stt"
)

// controllerSettings maps the file config onto the recording controller.
func controllerSettings(cfg *config.Config) recording.Settings {
	pref, err := recording.ParsePreference(cfg.RecordingMode)
	if err != nil {
		slog.Warn("recording mode", "error", err)
	}
	return recording.Settings{
		HoldThreshold: cfg.HoldThreshold(),
		MinDuration:   cfg.MinDuration(),
		Preference:    pref,
		Conditioning:  conditionerOptions(cfg),
		DeviceID:      cfg.DeviceID,
		SampleRate:    cfg.SampleRate,
	}
}

func conditionerOptions(cfg *config.Config) conditioner.Options {
	return conditioner.Options{
		NoiseGate:         cfg.NoiseGate,
		GateThresholdDB:   cfg.NoiseGateThresholdDB,
		GateRelativeDB:    cfg.NoiseGateRelativeDB,
		VAD:               cfg.VAD,
		VADAggressiveness: cfg.VADAggressiveness,
		Normalize:         cfg.Normalize,
		TargetDBFS:        cfg.TargetDBFS,
	}
}

func recognizerConfig(cfg *config.Config) stt.Config {
	return stt.Config{
		Type:     cfg.Recognizer.Type,
		APIKey:   cfg.Recognizer.APIKey,
		BaseURL:  cfg.Recognizer.BaseURL,
		Model:    cfg.Recognizer.Model,
		Prompt:   cfg.Recognizer.Prompt,
		Language: cfg.Language,
	}
}

// chordOf parses the configured chord, falling back to the default one.
func chordOf(cfg *config.Config) hotkey.Chord {
	chord, err := hotkey.ParseChord(cfg.Chord)
	if err != nil {
		def := config.Default().Chord
		slog.Warn("invalid chord, using default", "chord", cfg.Chord, "default", def, "error", err)
		return hotkey.MustParseChord(def)
	}
	return chord
}

// ParseLogLevel maps a config log level to slog. Unknown values mean info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
