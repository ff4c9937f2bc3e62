// Package stt hands conditioned audio to a speech recognition engine.
package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.aimuz.me/voxchord/conditioner"
)

// ErrNotConfigured is returned when the recognizer lacks credentials.
var ErrNotConfigured = errors.New("stt: recognizer not configured")

// Result is the outcome of one recognition call.
type Result struct {
	Text       string        `json:"text"`
	Duration   time.Duration `json:"duration"`
	Language   string        `json:"language,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
}

// Recognizer turns a finished buffer into text. Calls block until the
// engine answers or ctx is done.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, buf conditioner.Buffer) (*Result, error)
}

// Config selects and configures a recognizer.
type Config struct {
	Type     string // "openai" or "openai-compatible"
	APIKey   string
	BaseURL  string
	Model    string
	Prompt   string
	Language string // empty or "auto" lets the engine detect
}

// New creates the recognizer named by cfg.Type.
func New(cfg Config) (Recognizer, error) {
	switch cfg.Type {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key: %w", ErrNotConfigured)
		}
		cfg.BaseURL = ""
		return NewOpenAI(cfg), nil
	case "openai-compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base url: %w", ErrNotConfigured)
		}
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown recognizer type %q", cfg.Type)
	}
}

// LanguageDetector guesses the language of a transcript.
type LanguageDetector interface {
	Detect(text string) (code string, confidence float64, ok bool)
}

type detecting struct {
	Recognizer
	detector LanguageDetector
}

// WithLanguageDetection fills Result.Language from the transcript text when
// the engine does not report a language. The detector's confidence is about
// the language, not the transcript, so Result.Confidence is left alone.
func WithLanguageDetection(r Recognizer, d LanguageDetector) Recognizer {
	if d == nil {
		return r
	}
	return &detecting{Recognizer: r, detector: d}
}

func (d *detecting) Recognize(ctx context.Context, buf conditioner.Buffer) (*Result, error) {
	res, err := d.Recognizer.Recognize(ctx, buf)
	if err != nil || res == nil || res.Language != "" || res.Text == "" {
		return res, err
	}
	if code, _, ok := d.detector.Detect(res.Text); ok {
		res.Language = code
	}
	return res, nil
}
