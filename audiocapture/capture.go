// Package audiocapture records mono microphone audio into memory.
//
// The realtime callback only appends samples and stores a level value.
// Consumers poll Level from their own goroutine; nothing is ever pushed
// from the audio thread.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyActive is returned by Start while a capture session is running.
var ErrAlreadyActive = errors.New("audiocapture: already active")

// ErrBusy is returned when a setting that needs an idle engine is changed
// during capture.
var ErrBusy = errors.New("audiocapture: engine busy")

// levelHeadroom scales chunk RMS into the [0, 1] level range. Speech at
// normal distance sits around 0.05-0.2 RMS.
const levelHeadroom = 4

// CaptureError reports a device or stream failure.
type CaptureError struct {
	Op  string // "open", "start"
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("audiocapture: %s stream: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// StreamConfig describes the input stream to open.
type StreamConfig struct {
	DeviceID   string // empty selects the system default
	SampleRate int
	Channels   int
}

// Stream is an open input stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Default           bool    `json:"default"`
	MaxInputChannels  int     `json:"maxInputChannels"`
	DefaultSampleRate float64 `json:"defaultSampleRate"`
}

// Device opens input streams. onAudio runs on the audio thread.
type Device interface {
	Open(cfg StreamConfig, onAudio func(in []float32)) (Stream, error)
	Devices() ([]DeviceInfo, error)
}

// Session describes one capture from Start to Stop.
type Session struct {
	ID         uuid.UUID
	StartedAt  time.Time
	DeviceID   string
	SampleRate int
	Channels   int
}

// Recording is the captured audio handed to the caller by Stop.
type Recording struct {
	Session   Session
	Samples   []float32
	StoppedAt time.Time
}

// IsEmpty reports whether no audio was captured.
func (r Recording) IsEmpty() bool {
	return len(r.Samples) == 0
}

// Duration returns the length of the captured audio.
func (r Recording) Duration() time.Duration {
	if r.Session.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.Session.SampleRate)
}

// ByteCount returns the size of the audio as 16-bit PCM.
func (r Recording) ByteCount() int {
	return len(r.Samples) * 2
}

// Config holds engine settings.
type Config struct {
	DeviceID   string
	SampleRate int
}

// Engine owns the input device and at most one capture session.
type Engine struct {
	dev Device
	now func() time.Time

	mu         sync.Mutex
	deviceID   string
	sampleRate int
	stream     Stream
	session    *Session

	recording atomic.Bool
	level     atomic.Uint32 // math.Float32bits of the latest level

	// Guarded only for the append in the audio callback.
	bufMu sync.Mutex
	buf   []float32
}

// New creates an engine. A zero sample rate defaults to 16 kHz.
func New(dev Device, cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Engine{
		dev:        dev,
		now:        time.Now,
		deviceID:   cfg.DeviceID,
		sampleRate: cfg.SampleRate,
	}
}

// Start opens the input stream and begins buffering. It returns
// ErrAlreadyActive if a session is running, leaving that session untouched.
// On device failure the engine stays idle and a *CaptureError is returned.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		return ErrAlreadyActive
	}

	e.bufMu.Lock()
	// Pre-size for ~30s so the callback rarely grows the slice.
	e.buf = make([]float32, 0, e.sampleRate*30)
	e.bufMu.Unlock()
	e.level.Store(0)

	cfg := StreamConfig{DeviceID: e.deviceID, SampleRate: e.sampleRate, Channels: 1}
	stream, err := e.dev.Open(cfg, e.onAudio)
	if err != nil {
		e.resetBuffer()
		return &CaptureError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			slog.Debug("close stream after failed start", "error", cerr)
		}
		e.resetBuffer()
		return &CaptureError{Op: "start", Err: err}
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	e.stream = stream
	e.session = &Session{
		ID:         id,
		StartedAt:  e.now(),
		DeviceID:   e.deviceID,
		SampleRate: e.sampleRate,
		Channels:   1,
	}
	e.recording.Store(true)
	return nil
}

// Stop halts and releases the stream and returns everything captured.
// It returns an empty Recording when idle.
func (e *Engine) Stop() Recording {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return Recording{}
	}

	if err := e.stream.Stop(); err != nil {
		slog.Warn("stop audio stream", "error", err)
	}
	if err := e.stream.Close(); err != nil {
		slog.Warn("close audio stream", "error", err)
	}
	e.stream = nil
	e.recording.Store(false)
	e.level.Store(0)

	e.bufMu.Lock()
	samples := e.buf
	e.buf = nil
	e.bufMu.Unlock()

	rec := Recording{
		Session:   *e.session,
		Samples:   samples,
		StoppedAt: e.now(),
	}
	e.session = nil
	return rec
}

// IsRecording reports whether a session is active.
func (e *Engine) IsRecording() bool {
	return e.recording.Load()
}

// Level returns the most recent input level in [0, 1].
func (e *Engine) Level() float32 {
	return math.Float32frombits(e.level.Load())
}

// DeviceID returns the configured device, empty for the system default.
func (e *Engine) DeviceID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deviceID
}

// SetDevice selects the input device for the next session.
func (e *Engine) SetDevice(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		return ErrBusy
	}
	e.deviceID = id
	return nil
}

// SetSampleRate sets the capture rate for the next session.
func (e *Engine) SetSampleRate(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("audiocapture: invalid sample rate %d", hz)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		return ErrBusy
	}
	e.sampleRate = hz
	return nil
}

// ListDevices returns the available input devices.
func (e *Engine) ListDevices() ([]DeviceInfo, error) {
	return e.dev.Devices()
}

// onAudio runs on the realtime audio thread.
func (e *Engine) onAudio(in []float32) {
	e.bufMu.Lock()
	if e.buf != nil {
		e.buf = append(e.buf, in...)
	}
	e.bufMu.Unlock()

	e.level.Store(math.Float32bits(levelOf(in)))
}

func (e *Engine) resetBuffer() {
	e.bufMu.Lock()
	e.buf = nil
	e.bufMu.Unlock()
}

// levelOf converts a chunk's RMS into a display level.
func levelOf(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	level := math.Sqrt(sum/float64(len(samples))) * levelHeadroom
	if level > 1 || math.IsNaN(level) {
		return 1
	}
	return float32(level)
}
