package recording

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/voxchord/audiocapture"
	"go.aimuz.me/voxchord/conditioner"
	"go.aimuz.me/voxchord/hotkey"
)

// LevelInterval is how often the input level is polled while recording.
const LevelInterval = 50 * time.Millisecond

// Capture is the audio engine driven by the controller.
type Capture interface {
	Start() error
	Stop() audiocapture.Recording
	IsRecording() bool
	Level() float32
	SetDevice(id string) error
	SetSampleRate(hz int) error
}

// Processor conditions a finished recording.
type Processor interface {
	Process(samples []float32, sampleRate int) conditioner.Buffer
}

// Handler receives each finished recording off the controller goroutine,
// for example to run speech recognition. The controller rejects new
// recordings until Handle returns.
type Handler interface {
	Handle(ctx context.Context, rec audiocapture.Recording, buf conditioner.Buffer)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec audiocapture.Recording, buf conditioner.Buffer)

func (f HandlerFunc) Handle(ctx context.Context, rec audiocapture.Recording, buf conditioner.Buffer) {
	f(ctx, rec, buf)
}

// Settings are the hot-reloadable controller parameters.
type Settings struct {
	HoldThreshold time.Duration
	MinDuration   time.Duration
	Preference    Preference
	Conditioning  conditioner.Options
	DeviceID      string
	SampleRate    int
}

// Options configures a Controller.
type Options struct {
	Capture  Capture
	Handler  Handler
	Notifier Notifier
	Settings Settings
	// NewProcessor builds the conditioner for a set of options. Nil uses
	// conditioner.New with the WebRTC classifier.
	NewProcessor func(conditioner.Options) Processor
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
)

type command struct {
	kind  commandKind
	reply chan error
}

// Controller owns the Machine and runs every transition, capture call and
// notification on the single goroutine executing Run.
type Controller struct {
	capture      Capture
	handler      Handler
	notifier     Notifier
	newProcessor func(conditioner.Options) Processor

	cmds     chan command
	settings chan Settings
	handoffs chan struct{}

	// owned by the Run goroutine
	machine       *Machine
	processor     Processor
	minDuration   time.Duration
	pendingDevice *Settings
	lastLevel     float32
	workers       sync.WaitGroup

	status atomic.Pointer[Status]
}

// NewController creates a controller. Call Run to start it.
func NewController(opts Options) *Controller {
	newProcessor := opts.NewProcessor
	if newProcessor == nil {
		newProcessor = func(o conditioner.Options) Processor { return conditioner.New(o, nil) }
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}

	c := &Controller{
		capture:      opts.Capture,
		handler:      opts.Handler,
		notifier:     notifier,
		newProcessor: newProcessor,
		cmds:         make(chan command),
		settings:     make(chan Settings, 1),
		handoffs:     make(chan struct{}, 1),
		machine:      NewMachine(opts.Settings.HoldThreshold, opts.Settings.Preference),
		processor:    newProcessor(opts.Settings.Conditioning),
		minDuration:  opts.Settings.MinDuration,
	}
	c.machine.onChange = c.onTransition
	c.publishStatus()
	return c
}

// Status returns the latest state snapshot. Safe from any goroutine.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// StartManual starts a UI-initiated recording. It returns ErrAlreadyActive
// while anything is recording or being handed off, or a capture error.
func (c *Controller) StartManual(ctx context.Context) error {
	return c.send(ctx, cmdStart)
}

// StopManual stops the current recording, however it was started.
func (c *Controller) StopManual(ctx context.Context) error {
	return c.send(ctx, cmdStop)
}

func (c *Controller) send(ctx context.Context, kind commandKind) error {
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply queues new settings. Device and sample rate changes wait until the
// engine is idle; the rest apply immediately. Only the latest queued
// settings are kept.
func (c *Controller) Apply(s Settings) {
	for {
		select {
		case c.settings <- s:
			return
		default:
		}
		select {
		case <-c.settings:
		default:
		}
	}
}

// Run processes chord events and commands until ctx is done. A recording in
// progress at shutdown is discarded.
func (c *Controller) Run(ctx context.Context, chords <-chan hotkey.ChordEvent) error {
	ticker := time.NewTicker(LevelInterval)
	defer ticker.Stop()
	defer c.workers.Wait()

	for {
		select {
		case <-ctx.Done():
			if c.capture.IsRecording() {
				rec := c.capture.Stop()
				slog.Info("recording discarded at shutdown", "samples", len(rec.Samples))
			}
			return nil

		case ev, ok := <-chords:
			if !ok {
				chords = nil
				continue
			}
			c.handleChord(ctx, ev)

		case cmd := <-c.cmds:
			cmd.reply <- c.handleCommand(ctx, cmd.kind)

		case s := <-c.settings:
			c.applySettings(s)

		case <-c.handoffs:
			c.machine.HandoffDone()
			c.applyPendingDevice()

		case <-ticker.C:
			c.pollLevel()
		}
	}
}

func (c *Controller) handleChord(ctx context.Context, ev hotkey.ChordEvent) {
	switch ev.Kind {
	case hotkey.Engaged:
		action, err := c.machine.Engaged()
		if err != nil {
			slog.Warn("chord ignored", "reason", err)
			return
		}
		c.execute(ctx, action)
	case hotkey.Released:
		c.execute(ctx, c.machine.Released(ev.HoldDuration))
	}
}

func (c *Controller) handleCommand(ctx context.Context, kind commandKind) error {
	switch kind {
	case cmdStart:
		action, err := c.machine.ManualStart()
		if err != nil {
			return err
		}
		return c.execute(ctx, action)
	case cmdStop:
		return c.execute(ctx, c.machine.ManualStop())
	}
	return nil
}

// execute performs the capture call requested by a transition.
func (c *Controller) execute(ctx context.Context, action Action) error {
	switch action {
	case ActionStart:
		return c.startCapture()
	case ActionStop:
		c.stopCapture(ctx)
	}
	return nil
}

func (c *Controller) startCapture() error {
	err := c.capture.Start()
	switch {
	case err == nil:
		c.lastLevel = 0
		c.notifier.Notify(Event{Kind: EventRecordingStarted, Mode: c.machine.Mode(), Recording: true})
		return nil
	case errors.Is(err, audiocapture.ErrAlreadyActive):
		slog.Warn("capture already active")
		return nil
	default:
		slog.Error("start capture", "error", err)
		c.machine.StartFailed()
		c.notifier.Notify(Event{Kind: EventRecordingError, Message: err.Error()})
		return err
	}
}

func (c *Controller) stopCapture(ctx context.Context) {
	rec := c.capture.Stop()
	c.notifier.Notify(Event{Kind: EventRecordingStopped, ByteCount: rec.ByteCount()})

	if rec.IsEmpty() || rec.Duration() < c.minDuration {
		slog.Info("recording too short, dropped", "duration", rec.Duration(), "min", c.minDuration)
		c.machine.HandoffDone()
		c.applyPendingDevice()
		return
	}

	buf := c.processor.Process(rec.Samples, rec.Session.SampleRate)
	slog.Debug("recording conditioned",
		"session", rec.Session.ID,
		"duration", rec.Duration(),
		"level_dbfs", conditioner.LevelDBFS(buf.Samples))

	if c.handler == nil {
		c.machine.HandoffDone()
		c.applyPendingDevice()
		return
	}

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.handler.Handle(ctx, rec, buf)
		select {
		case c.handoffs <- struct{}{}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) pollLevel() {
	if !c.machine.IsRecording() {
		return
	}
	level := c.capture.Level()
	c.lastLevel = level
	c.publishStatus()
	c.notifier.Notify(Event{Kind: EventLevelChanged, Level: level})
}

func (c *Controller) applySettings(s Settings) {
	c.machine.SetHoldThreshold(s.HoldThreshold)
	c.machine.SetPreference(s.Preference)
	c.minDuration = s.MinDuration
	c.processor = c.newProcessor(s.Conditioning)

	c.pendingDevice = &s
	c.applyPendingDevice()
}

// applyPendingDevice applies a deferred device or rate change once idle.
func (c *Controller) applyPendingDevice() {
	s := c.pendingDevice
	if s == nil || c.machine.IsRecording() || c.machine.IsProcessing() {
		return
	}
	if err := c.capture.SetDevice(s.DeviceID); err != nil {
		slog.Warn("set capture device", "device", s.DeviceID, "error", err)
		return
	}
	if s.SampleRate > 0 {
		if err := c.capture.SetSampleRate(s.SampleRate); err != nil {
			slog.Warn("set capture sample rate", "rate", s.SampleRate, "error", err)
			return
		}
	}
	c.pendingDevice = nil
}

func (c *Controller) onTransition(from, to phase) {
	slog.Debug("recording state", "from", from.String(), "to", to.String())
	if !to.recording() {
		c.lastLevel = 0
	}
	c.publishStatus()
	c.notifier.Notify(Event{
		Kind:       EventStateChanged,
		Mode:       to.mode(),
		Recording:  to.recording(),
		Processing: to == phaseProcessing,
	})
}

func (c *Controller) publishStatus() {
	c.status.Store(&Status{
		Mode:       c.machine.Mode(),
		Recording:  c.machine.IsRecording(),
		Processing: c.machine.IsProcessing(),
		Level:      c.lastLevel,
	})
}
