// Package conditioner cleans up a captured recording before it is handed
// to speech recognition: noise gate, voice-activity trim and loudness
// normalization, each optional and applied in that order.
//
// A stage that fails or panics is skipped and the output of the previous
// stage is passed on. Losing preprocessing is better than losing audio.
package conditioner

import (
	"fmt"
	"log/slog"
	"slices"
)

// Buffer is conditioned mono audio ready for recognition.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Options selects and tunes the stages.
type Options struct {
	NoiseGate bool
	// GateThresholdDB is the absolute frame level (dBFS) below which a frame
	// is silenced.
	GateThresholdDB float64
	// GateRelativeDB silences frames this far below the loudest frame.
	// Zero disables the relative check.
	GateRelativeDB float64

	VAD bool
	// VADAggressiveness ranges from 0 (least) to 3 (most aggressive).
	VADAggressiveness int

	Normalize  bool
	TargetDBFS float64
}

// DefaultOptions returns the stage settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		NoiseGate:         true,
		GateThresholdDB:   -45,
		GateRelativeDB:    -30,
		VAD:               true,
		VADAggressiveness: 2,
		Normalize:         true,
		TargetDBFS:        -20,
	}
}

// Conditioner runs the pipeline. It holds no state between calls.
type Conditioner struct {
	opts          Options
	newClassifier ClassifierFactory
}

// New creates a conditioner. A nil factory uses the WebRTC classifier.
func New(opts Options, newClassifier ClassifierFactory) *Conditioner {
	if newClassifier == nil {
		newClassifier = NewWebRTC
	}
	return &Conditioner{opts: opts, newClassifier: newClassifier}
}

// Process conditions samples captured at sampleRate. The input is not
// modified.
func (c *Conditioner) Process(samples []float32, sampleRate int) Buffer {
	out := slices.Clone(samples)
	if len(out) == 0 || sampleRate <= 0 {
		return Buffer{Samples: out, SampleRate: sampleRate}
	}

	if c.opts.NoiseGate {
		out = runStage("noise gate", out, func(in []float32) ([]float32, error) {
			return Gate(in, sampleRate, c.opts.GateThresholdDB, c.opts.GateRelativeDB), nil
		})
	}
	if c.opts.VAD {
		out = runStage("voice activity", out, func(in []float32) ([]float32, error) {
			cls, err := c.newClassifier(c.opts.VADAggressiveness)
			if err != nil {
				return nil, fmt.Errorf("classifier unavailable: %w", err)
			}
			return TrimSilence(in, sampleRate, cls)
		})
	}
	if c.opts.Normalize {
		out = runStage("normalize", out, func(in []float32) ([]float32, error) {
			return Normalize(in, c.opts.TargetDBFS), nil
		})
	}

	return Buffer{Samples: out, SampleRate: sampleRate}
}

// runStage applies fn to a copy of in and falls back to in on error or panic.
func runStage(name string, in []float32, fn func([]float32) ([]float32, error)) (out []float32) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("preprocessing degraded", "stage", name, "panic", r)
			out = in
		}
	}()

	res, err := fn(slices.Clone(in))
	if err != nil {
		slog.Debug("preprocessing degraded", "stage", name, "error", err)
		return in
	}
	if len(res) != len(in) {
		slog.Debug("preprocessing degraded", "stage", name, "error", "length changed")
		return in
	}
	return res
}
