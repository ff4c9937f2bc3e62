package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReportsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"chord":"ctrl+alt"}`)

	changes := make(chan [2]*Config, 1)
	w, err := NewWatcher(path, func(old, new *Config) {
		changes <- [2]*Config{old, new}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	go w.Run()
	defer w.Stop()

	writeFile(t, path, `{"chord":"ctrl+shift"}`)
	// Force a distinct mtime on filesystems with coarse timestamps.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case c := <-changes:
		if c[0].Chord != "ctrl+alt" || c[1].Chord != "ctrl+shift" {
			t.Errorf("change old=%q new=%q", c[0].Chord, c[1].Chord)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	if w.Current().Chord != "ctrl+shift" {
		t.Errorf("Current().Chord = %q", w.Current().Chord)
	}
}

func TestWatcher_InvalidKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"chord":"ctrl+alt"}`)

	w, err := NewWatcher(path, func(old, new *Config) {
		t.Errorf("unexpected change to %q", new.Chord)
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	writeFile(t, path, `{"vad_aggressiveness":9}`)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	w.check()

	if w.Current().Chord != "ctrl+alt" {
		t.Errorf("Current().Chord = %q, want ctrl+alt", w.Current().Chord)
	}
}

func TestNewWatcher_InvalidInitial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"sample_rate":1}`)

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}
