package hotkey

import (
	"errors"
	"testing"
)

func TestParseChord(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ctrl+alt", "alt+ctrl", false},
		{"LCtrl+RAlt", "alt+ctrl", false},
		{"cmd+shift+space", "shift+super+space", false},
		{"Win + Q", "super+q", false},
		{"control+ctrl", "ctrl", false},
		{"option+Return", "alt+enter", false},
		{"", "", true},
		{" + ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseChord(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrEmptyChord) {
					t.Fatalf("ParseChord(%q) error = %v, want ErrEmptyChord", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChord(%q): %v", tt.in, err)
			}
			if got := c.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChordSatisfiedBy(t *testing.T) {
	c := MustParseChord("ctrl+alt")

	tests := []struct {
		name    string
		pressed map[string]bool
		want    bool
	}{
		{"exact", map[string]bool{"ctrl": true, "alt": true}, true},
		{"superset", map[string]bool{"ctrl": true, "alt": true, "a": true}, true},
		{"partial", map[string]bool{"ctrl": true}, false},
		{"empty", map[string]bool{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.SatisfiedBy(tt.pressed); got != tt.want {
				t.Errorf("SatisfiedBy = %v, want %v", got, tt.want)
			}
		})
	}

	if (Chord{}).SatisfiedBy(map[string]bool{"ctrl": true}) {
		t.Error("zero chord must never match")
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"rctrl":  "ctrl",
		"Menu":   "alt",
		"lcmd":   "super",
		"meta":   "super",
		"rshift": "shift",
		" ":      "space",
		"A":      "a",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
