package hotkey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoBackend is returned by Start when no key listener backend can run in
// the current environment. The application keeps working with manual
// recording only.
var ErrNoBackend = errors.New("hotkey: no listener backend available")

// EventKind distinguishes chord transitions.
type EventKind int

const (
	// Engaged fires once when all chord keys become pressed.
	Engaged EventKind = iota + 1
	// Released fires when the chord stops being fully pressed.
	Released
)

func (k EventKind) String() string {
	switch k {
	case Engaged:
		return "engaged"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// ChordEvent is emitted by the Listener. HoldDuration is set only for Released.
type ChordEvent struct {
	Kind         EventKind
	HoldDuration time.Duration
	At           time.Time
}

// KeyEvent is a raw key transition produced by a Backend.
type KeyEvent struct {
	Token string // raw or canonical key name
	Down  bool
	At    time.Time
}

// Backend is a source of raw key events.
type Backend interface {
	// Name identifies the backend in logs and status.
	Name() string
	// Probe reports whether the backend can serve chord in this environment.
	Probe(chord Chord) error
	// Run delivers key events to sink until ctx is done. sink never blocks.
	Run(ctx context.Context, chord Chord, sink func(KeyEvent)) error
}

// Options configures a Listener.
type Options struct {
	// Debounce suppresses an Engaged that follows the previous one too
	// closely, or follows a Released within a short repeat guard. Zero
	// disables both.
	Debounce time.Duration
	// Backends in priority order.
	Backends []Backend
	// OnBackend is called from the listener goroutine whenever the active
	// backend changes. An empty name means none is running.
	OnBackend func(name string)
	// Now overrides the clock for events that carry no timestamp.
	Now func() time.Time
}

// Listener tracks pressed keys reported by a backend and turns them into
// edge-triggered chord events.
type Listener struct {
	opts Options
	now  func() time.Time

	raw    chan KeyEvent
	events chan ChordEvent

	mu        sync.Mutex
	chord     Chord
	debounce  time.Duration
	backend   string
	reconfig  context.CancelFunc
	cancel    context.CancelFunc
	done      chan struct{}
	dropped   int
	dropOnce  sync.Once
	eventOnce sync.Once

	// owned by the processing goroutine
	pressed      map[string]bool
	engaged      bool
	suppressed   bool
	engagedAt    time.Time
	lastEngaged  time.Time
	lastReleased time.Time
}

// New creates a listener. Call Configure before Start.
func New(opts Options) *Listener {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Listener{
		opts:     opts,
		now:      now,
		debounce: opts.Debounce,
		raw:      make(chan KeyEvent, 256),
		events:   make(chan ChordEvent, 32),
		pressed:  make(map[string]bool),
	}
}

// Events returns the chord event stream. It is never closed.
func (l *Listener) Events() <-chan ChordEvent {
	return l.events
}

// Configure sets the chord to watch. If the listener is running the active
// backend is restarted so chord-specific registrations are refreshed.
func (l *Listener) Configure(chord Chord) {
	l.mu.Lock()
	changed := !l.chord.Equal(chord)
	l.chord = chord
	reconfig := l.reconfig
	l.mu.Unlock()

	if changed && reconfig != nil {
		reconfig()
	}
}

// SetDebounce updates the debounce window.
func (l *Listener) SetDebounce(d time.Duration) {
	l.mu.Lock()
	l.debounce = d
	l.mu.Unlock()
}

// Chord returns the configured chord.
func (l *Listener) Chord() Chord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chord
}

// Backend returns the name of the running backend, or "" if none.
func (l *Listener) Backend() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend
}

// Start probes the backends and begins listening. It returns ErrNoBackend
// when nothing can serve the configured chord; the listener is then idle.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return nil
	}
	chord := l.chord
	l.mu.Unlock()

	if _, ok := l.pick(chord, nil); !ok {
		slog.Warn("no key listener backend available; manual recording only", "chord", chord.String())
		return ErrNoBackend
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	clear(l.pressed)
	l.engaged, l.suppressed = false, false

	l.mu.Lock()
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.runBackends(ctx)
	}()
	go func() {
		defer wg.Done()
		l.process(ctx)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()
	return nil
}

// Stop halts the backend and waits for the listener goroutines to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Dropped returns how many raw key events and Engaged events were lost to
// a full queue.
func (l *Listener) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// pick returns the first backend whose probe succeeds, skipping failed ones.
func (l *Listener) pick(chord Chord, failed map[string]bool) (Backend, bool) {
	for _, b := range l.opts.Backends {
		if failed[b.Name()] {
			continue
		}
		if err := b.Probe(chord); err != nil {
			slog.Debug("key listener backend unavailable", "backend", b.Name(), "error", err)
			continue
		}
		return b, true
	}
	return nil, false
}

func (l *Listener) runBackends(ctx context.Context) {
	failed := make(map[string]bool)
	defer l.setBackend("", nil)

	for ctx.Err() == nil {
		chord := l.Chord()
		b, ok := l.pick(chord, failed)
		if !ok {
			slog.Warn("all key listener backends failed; manual recording only", "error", ErrNoBackend)
			return
		}

		bctx, cancel := context.WithCancel(ctx)
		l.setBackend(b.Name(), cancel)
		slog.Info("key listener started", "backend", b.Name(), "chord", chord.String())

		err := b.Run(bctx, chord, l.push)
		reconfigured := bctx.Err() != nil && ctx.Err() == nil
		cancel()

		switch {
		case ctx.Err() != nil:
			return
		case reconfigured:
			slog.Debug("key listener restarting for new chord", "backend", b.Name())
		case err != nil:
			slog.Warn("key listener backend failed, falling back", "backend", b.Name(), "error", err)
			failed[b.Name()] = true
		default:
			failed[b.Name()] = true
		}
		// Keys held across a backend switch will never report their release.
		l.push(KeyEvent{Token: resetToken})
	}
}

func (l *Listener) setBackend(name string, reconfig context.CancelFunc) {
	l.mu.Lock()
	changed := l.backend != name
	l.backend = name
	l.reconfig = reconfig
	l.mu.Unlock()

	if changed && l.opts.OnBackend != nil {
		l.opts.OnBackend(name)
	}
}

// resetToken clears the pressed set.
const resetToken = "\x00reset"

// push enqueues a raw event without blocking the backend thread.
func (l *Listener) push(ev KeyEvent) {
	select {
	case l.raw <- ev:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
		l.dropOnce.Do(func() {
			slog.Warn("key event queue full, dropping events")
		})
	}
}

func (l *Listener) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.raw:
			l.handle(ctx, ev)
		}
	}
}

// repeatGuard bounds how soon after a Released the chord may engage again.
// Key repeat and switch bounce land well inside it.
const repeatGuard = 50 * time.Millisecond

// handle applies one raw key event and emits a chord event on an edge.
func (l *Listener) handle(ctx context.Context, ev KeyEvent) {
	if ev.Token == resetToken {
		clear(l.pressed)
		l.suppressed = false
		if l.engaged {
			l.release(ctx, l.now())
		}
		return
	}

	token := Normalize(ev.Token)
	if token == "" {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = l.now()
	}

	if ev.Down {
		l.pressed[token] = true
	} else {
		delete(l.pressed, token)
	}

	l.mu.Lock()
	chord, debounce := l.chord, l.debounce
	l.mu.Unlock()

	match := chord.SatisfiedBy(l.pressed)
	switch {
	case match && !l.engaged && !l.suppressed:
		if l.bounced(at, debounce) {
			// Swallow this press and its release.
			l.suppressed = true
			return
		}
		if !l.emit(ctx, ChordEvent{Kind: Engaged, At: at}, false) {
			l.suppressed = true
			return
		}
		l.engaged = true
		l.engagedAt = at
		l.lastEngaged = at
	case !match && l.engaged:
		l.release(ctx, at)
	case !match && l.suppressed:
		l.suppressed = false
	}
}

// bounced reports whether an engage at at falls inside the debounce window
// of the previous Engaged or the repeat guard of the previous Released.
func (l *Listener) bounced(at time.Time, debounce time.Duration) bool {
	if debounce <= 0 {
		return false
	}
	if !l.lastEngaged.IsZero() && at.Sub(l.lastEngaged) < debounce {
		slog.Debug("chord debounced", "since_engaged", at.Sub(l.lastEngaged))
		return true
	}
	guard := min(repeatGuard, debounce)
	if !l.lastReleased.IsZero() && at.Sub(l.lastReleased) < guard {
		slog.Debug("chord debounced", "since_released", at.Sub(l.lastReleased))
		return true
	}
	return false
}

func (l *Listener) release(ctx context.Context, at time.Time) {
	l.engaged = false
	l.lastReleased = at
	l.emit(ctx, ChordEvent{Kind: Released, HoldDuration: at.Sub(l.engagedAt), At: at}, true)
}

// emit delivers ev to the event stream. An Engaged is dropped when the
// queue is full. A Released waits for room, since losing it would leave a
// recording running.
func (l *Listener) emit(ctx context.Context, ev ChordEvent, wait bool) bool {
	select {
	case l.events <- ev:
		return true
	default:
	}
	if wait {
		select {
		case l.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	l.mu.Lock()
	l.dropped++
	l.mu.Unlock()
	l.eventOnce.Do(func() {
		slog.Warn("chord event queue full, dropping engage")
	})
	return false
}
