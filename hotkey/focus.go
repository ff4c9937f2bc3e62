package hotkey

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// FocusBackend approximates a global hook with key events that the shell
// window observes while it has focus. It always probes successfully and is
// the last resort: the chord only works while the app window is focused.
type FocusBackend struct {
	interval time.Duration
	running  atomic.Bool

	mu      sync.Mutex
	pending []KeyEvent
	down    map[string]bool
	warned  sync.Once
}

// NewFocusBackend returns a focus-polling backend draining its queue every
// interval. A non-positive interval uses 20ms.
func NewFocusBackend(interval time.Duration) *FocusBackend {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &FocusBackend{interval: interval, down: make(map[string]bool)}
}

func (*FocusBackend) Name() string { return "focus" }

func (*FocusBackend) Probe(Chord) error { return nil }

// Feed records a key transition seen by the focused window. It never blocks
// and is a no-op unless the backend is running.
func (f *FocusBackend) Feed(token string, down bool) {
	if !f.running.Load() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if down {
		f.down[token] = true
	} else {
		delete(f.down, token)
	}
	f.pending = append(f.pending, KeyEvent{Token: token, Down: down, At: time.Now()})
}

// Blur releases every key still held, since key-up events are not seen once
// the window loses focus.
func (f *FocusBackend) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for token := range f.down {
		f.pending = append(f.pending, KeyEvent{Token: token, At: now})
	}
	clear(f.down)
}

func (f *FocusBackend) Run(ctx context.Context, _ Chord, sink func(KeyEvent)) error {
	f.warned.Do(func() {
		slog.Warn("global key hook unavailable; chord only works while the window is focused")
	})

	f.running.Store(true)
	defer func() {
		f.running.Store(false)
		f.mu.Lock()
		f.pending = nil
		clear(f.down)
		f.mu.Unlock()
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.mu.Lock()
			batch := f.pending
			f.pending = nil
			f.mu.Unlock()
			for _, ev := range batch {
				sink(ev)
			}
		}
	}
}
