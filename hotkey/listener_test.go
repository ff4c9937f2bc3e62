package hotkey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend hands its sink to the test so key events can be injected.
type fakeBackend struct {
	name     string
	probeErr error
	runErr   error

	mu      sync.Mutex
	sink    func(KeyEvent)
	started chan struct{}
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, started: make(chan struct{}, 4)}
}

func (f *fakeBackend) Name() string      { return f.name }
func (f *fakeBackend) Probe(Chord) error { return f.probeErr }
func (f *fakeBackend) Run(ctx context.Context, _ Chord, sink func(KeyEvent)) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
	f.started <- struct{}{}
	<-ctx.Done()
	return nil
}

func (f *fakeBackend) send(token string, down bool, at time.Time) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(KeyEvent{Token: token, Down: down, At: at})
}

func waitStarted(t *testing.T, f *fakeBackend) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatalf("backend %s not started", f.name)
	}
}

func nextEvent(t *testing.T, l *Listener) ChordEvent {
	t.Helper()
	select {
	case ev := <-l.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no chord event")
		return ChordEvent{}
	}
}

func expectNoEvent(t *testing.T, l *Listener) {
	t.Helper()
	select {
	case ev := <-l.Events():
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

var bg = context.Background()

// newTestListener uses handle directly, bypassing backends and goroutines.
func newTestListener(chord string, debounce time.Duration) *Listener {
	l := New(Options{Debounce: debounce})
	l.Configure(MustParseChord(chord))
	return l
}

func TestListener_EdgeTriggered(t *testing.T) {
	l := newTestListener("ctrl+alt", 0)
	t0 := time.Unix(1000, 0)

	l.handle(bg, KeyEvent{Token: "lctrl", Down: true, At: t0})
	l.handle(bg, KeyEvent{Token: "alt", Down: true, At: t0.Add(10 * time.Millisecond)})
	// Key repeat while held must not re-fire.
	l.handle(bg, KeyEvent{Token: "alt", Down: true, At: t0.Add(40 * time.Millisecond)})
	l.handle(bg, KeyEvent{Token: "rctrl", Down: true, At: t0.Add(50 * time.Millisecond)})

	ev := nextEvent(t, l)
	if ev.Kind != Engaged {
		t.Fatalf("first event = %v, want engaged", ev.Kind)
	}
	expectNoEvent(t, l)

	l.handle(bg, KeyEvent{Token: "alt", Down: false, At: t0.Add(310 * time.Millisecond)})
	ev = nextEvent(t, l)
	if ev.Kind != Released {
		t.Fatalf("second event = %v, want released", ev.Kind)
	}
	if ev.HoldDuration != 300*time.Millisecond {
		t.Errorf("HoldDuration = %v, want 300ms", ev.HoldDuration)
	}
}

func TestListener_Debounce(t *testing.T) {
	tests := []struct {
		name       string
		secondAt   time.Duration
		wantEngage bool
	}{
		{"inside window", 200 * time.Millisecond, false},
		{"at window edge", 500 * time.Millisecond, true},
		{"after window", 800 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestListener("ctrl+alt", 500*time.Millisecond)
			t0 := time.Unix(1000, 0)
			press := func(at time.Duration) {
				l.handle(bg, KeyEvent{Token: "ctrl", Down: true, At: t0.Add(at)})
				l.handle(bg, KeyEvent{Token: "alt", Down: true, At: t0.Add(at)})
			}
			release := func(at time.Duration) {
				l.handle(bg, KeyEvent{Token: "alt", Down: false, At: t0.Add(at)})
				l.handle(bg, KeyEvent{Token: "ctrl", Down: false, At: t0.Add(at)})
			}

			press(0)
			release(100 * time.Millisecond)
			if ev := nextEvent(t, l); ev.Kind != Engaged {
				t.Fatalf("got %v, want engaged", ev.Kind)
			}
			if ev := nextEvent(t, l); ev.Kind != Released {
				t.Fatalf("got %v, want released", ev.Kind)
			}

			press(tt.secondAt)
			release(tt.secondAt + 20*time.Millisecond)
			if !tt.wantEngage {
				expectNoEvent(t, l)
				return
			}
			if ev := nextEvent(t, l); ev.Kind != Engaged {
				t.Fatalf("got %v, want engaged", ev.Kind)
			}
			ev := nextEvent(t, l)
			if ev.Kind != Released || ev.HoldDuration != 20*time.Millisecond {
				t.Fatalf("got %v/%v, want released/20ms", ev.Kind, ev.HoldDuration)
			}
		})
	}
}

func TestListener_RepeatAfterLongHold(t *testing.T) {
	tests := []struct {
		name       string
		againAfter time.Duration
		wantEngage bool
	}{
		{"key repeat after release", 10 * time.Millisecond, false},
		{"deliberate re-press", 200 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestListener("ctrl+alt", 500*time.Millisecond)
			t0 := time.Unix(1000, 0)
			releasedAt := t0.Add(900 * time.Millisecond)

			l.handle(bg, KeyEvent{Token: "ctrl", Down: true, At: t0})
			l.handle(bg, KeyEvent{Token: "alt", Down: true, At: t0})
			l.handle(bg, KeyEvent{Token: "alt", Down: false, At: releasedAt})
			if ev := nextEvent(t, l); ev.Kind != Engaged {
				t.Fatalf("got %v, want engaged", ev.Kind)
			}
			if ev := nextEvent(t, l); ev.Kind != Released {
				t.Fatalf("got %v, want released", ev.Kind)
			}

			l.handle(bg, KeyEvent{Token: "alt", Down: true, At: releasedAt.Add(tt.againAfter)})
			if !tt.wantEngage {
				expectNoEvent(t, l)
				return
			}
			if ev := nextEvent(t, l); ev.Kind != Engaged {
				t.Fatalf("got %v, want engaged", ev.Kind)
			}
		})
	}
}

func TestListener_FullQueue(t *testing.T) {
	l := newTestListener("ctrl+alt", 0)
	filler := ChordEvent{Kind: Released}
	for len(l.events) < cap(l.events) {
		l.events <- filler
	}

	// An engage that does not fit is dropped along with its release.
	l.handle(bg, KeyEvent{Token: "ctrl", Down: true})
	l.handle(bg, KeyEvent{Token: "alt", Down: true})
	if l.engaged {
		t.Fatal("engaged although the event was dropped")
	}
	if got := l.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	l.handle(bg, KeyEvent{Token: "alt", Down: false})
	if len(l.events) != cap(l.events) {
		t.Fatalf("queue length = %d, want %d", len(l.events), cap(l.events))
	}

	// A release waits for room instead of being lost.
	for len(l.events) > 0 {
		<-l.events
	}
	l.handle(bg, KeyEvent{Token: "alt", Down: true})
	if ev := nextEvent(t, l); ev.Kind != Engaged {
		t.Fatalf("got %v, want engaged", ev.Kind)
	}
	for len(l.events) < cap(l.events) {
		l.events <- filler
	}

	done := make(chan struct{})
	go func() {
		l.handle(bg, KeyEvent{Token: "ctrl", Down: false})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("release returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	var last ChordEvent
	for range cap(l.events) + 1 {
		last = nextEvent(t, l)
	}
	<-done
	if last.Kind != Released || last.At.IsZero() {
		t.Errorf("last event = %+v, want the release", last)
	}
}

func TestListener_ReleaseGivesUpOnCancel(t *testing.T) {
	l := newTestListener("ctrl", 0)
	l.handle(bg, KeyEvent{Token: "ctrl", Down: true})
	<-l.events
	for len(l.events) < cap(l.events) {
		l.events <- ChordEvent{Kind: Engaged}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.handle(ctx, KeyEvent{Token: "ctrl", Down: false})
	if l.engaged {
		t.Error("still engaged after release")
	}
}

func TestListener_StrayReleaseIgnored(t *testing.T) {
	l := newTestListener("ctrl+alt", 0)
	l.handle(bg, KeyEvent{Token: "ctrl", Down: false})
	l.handle(bg, KeyEvent{Token: "alt", Down: false})
	expectNoEvent(t, l)
}

func TestListener_NoBackend(t *testing.T) {
	b := newFakeBackend("broken")
	b.probeErr = errors.New("unavailable")

	l := New(Options{Backends: []Backend{b}})
	l.Configure(MustParseChord("ctrl+alt"))
	if err := l.Start(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("Start error = %v, want ErrNoBackend", err)
	}
	if l.Backend() != "" {
		t.Errorf("Backend() = %q, want empty", l.Backend())
	}
}

func TestListener_FallsBackOnRunFailure(t *testing.T) {
	primary := newFakeBackend("primary")
	primary.runErr = errors.New("hook refused")
	secondary := newFakeBackend("secondary")

	var (
		mu    sync.Mutex
		names []string
	)
	l := New(Options{
		Backends: []Backend{primary, secondary},
		OnBackend: func(name string) {
			mu.Lock()
			names = append(names, name)
			mu.Unlock()
		},
	})
	l.Configure(MustParseChord("ctrl+alt"))
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, secondary)

	if got := l.Backend(); got != "secondary" {
		t.Errorf("Backend() = %q, want secondary", got)
	}

	now := time.Now()
	secondary.send("ctrl", true, now)
	secondary.send("alt", true, now)
	if ev := nextEvent(t, l); ev.Kind != Engaged {
		t.Fatalf("got %v, want engaged", ev.Kind)
	}

	l.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"primary", "secondary", ""}
	if len(names) != len(want) {
		t.Fatalf("backend changes = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("backend changes = %v, want %v", names, want)
		}
	}
}

func TestListener_ConfigureRestartsBackend(t *testing.T) {
	b := newFakeBackend("only")
	l := New(Options{Backends: []Backend{b}})
	l.Configure(MustParseChord("ctrl+alt"))
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()
	waitStarted(t, b)

	l.Configure(MustParseChord("ctrl+shift"))
	waitStarted(t, b)

	now := time.Now()
	b.send("ctrl", true, now)
	b.send("shift", true, now)
	if ev := nextEvent(t, l); ev.Kind != Engaged {
		t.Fatalf("got %v, want engaged", ev.Kind)
	}
}

func TestFocusBackend_BlurReleases(t *testing.T) {
	f := NewFocusBackend(5 * time.Millisecond)
	l := New(Options{Backends: []Backend{f}})
	l.Configure(MustParseChord("ctrl+alt"))
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()

	// Give Run a chance to start before feeding.
	deadline := time.Now().Add(time.Second)
	for !f.running.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	f.Feed("Control", true)
	f.Feed("Alt", true)
	if ev := nextEvent(t, l); ev.Kind != Engaged {
		t.Fatalf("got %v, want engaged", ev.Kind)
	}

	f.Blur()
	if ev := nextEvent(t, l); ev.Kind != Released {
		t.Fatalf("got %v, want released", ev.Kind)
	}
}
