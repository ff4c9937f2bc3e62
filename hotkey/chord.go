// Package hotkey detects a global keyboard chord and reports when it is
// engaged and released.
package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrEmptyChord is returned when a chord definition has no keys.
var ErrEmptyChord = errors.New("hotkey: empty chord")

// Canonical modifier tokens.
const (
	TokenCtrl  = "ctrl"
	TokenAlt   = "alt"
	TokenShift = "shift"
	TokenSuper = "super"
)

// aliases maps platform and side-specific key names onto one token so that
// chord matching does not depend on which physical key was used.
var aliases = map[string]string{
	"ctrl":     TokenCtrl,
	"control":  TokenCtrl,
	"lctrl":    TokenCtrl,
	"rctrl":    TokenCtrl,
	"lcontrol": TokenCtrl,
	"rcontrol": TokenCtrl,
	"ctrl_l":   TokenCtrl,
	"ctrl_r":   TokenCtrl,

	"alt":      TokenAlt,
	"lalt":     TokenAlt,
	"ralt":     TokenAlt,
	"alt_l":    TokenAlt,
	"alt_r":    TokenAlt,
	"menu":     TokenAlt,
	"option":   TokenAlt,
	"opt":      TokenAlt,
	"altgr":    TokenAlt,
	"alt_gr":   TokenAlt,
	"lmenu":    TokenAlt,
	"rmenu":    TokenAlt,
	"loption":  TokenAlt,
	"roption":  TokenAlt,
	"rightalt": TokenAlt,
	"leftalt":  TokenAlt,

	"shift":   TokenShift,
	"lshift":  TokenShift,
	"rshift":  TokenShift,
	"shift_l": TokenShift,
	"shift_r": TokenShift,

	"super":   TokenSuper,
	"cmd":     TokenSuper,
	"command": TokenSuper,
	"lcmd":    TokenSuper,
	"rcmd":    TokenSuper,
	"win":     TokenSuper,
	"lwin":    TokenSuper,
	"rwin":    TokenSuper,
	"windows": TokenSuper,
	"meta":    TokenSuper,
	"super_l": TokenSuper,
	"super_r": TokenSuper,

	"return": "enter",
	"esc":    "escape",
	"del":    "delete",
}

// Normalize maps a raw key name to its canonical token.
func Normalize(name string) string {
	if name == " " {
		return "space"
	}
	n := strings.ToLower(strings.TrimSpace(name))
	if t, ok := aliases[n]; ok {
		return t
	}
	return n
}

// IsModifier reports whether token is one of the canonical modifiers.
func IsModifier(token string) bool {
	switch token {
	case TokenCtrl, TokenAlt, TokenShift, TokenSuper:
		return true
	}
	return false
}

// Chord is a set of canonical key tokens that must be held together.
// The zero value matches nothing.
type Chord struct {
	keys []string // sorted, unique
}

// ParseChord parses a definition such as "ctrl+alt" or "Cmd+Shift+Space".
func ParseChord(s string) (Chord, error) {
	var keys []string
	for part := range strings.SplitSeq(s, "+") {
		t := Normalize(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !slices.Contains(keys, t) {
			keys = append(keys, t)
		}
	}
	if len(keys) == 0 {
		return Chord{}, fmt.Errorf("parse chord %q: %w", s, ErrEmptyChord)
	}
	slices.Sort(keys)
	return Chord{keys: keys}, nil
}

// MustParseChord is like ParseChord but panics on error.
func MustParseChord(s string) Chord {
	c, err := ParseChord(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Keys returns the chord tokens in sorted order.
func (c Chord) Keys() []string {
	return slices.Clone(c.keys)
}

// IsZero reports whether the chord is empty.
func (c Chord) IsZero() bool {
	return len(c.keys) == 0
}

// Modifiers returns the modifier tokens of the chord.
func (c Chord) Modifiers() []string {
	var mods []string
	for _, k := range c.keys {
		if IsModifier(k) {
			mods = append(mods, k)
		}
	}
	return mods
}

// Keys other than modifiers.
func (c Chord) nonModifiers() []string {
	var keys []string
	for _, k := range c.keys {
		if !IsModifier(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// SatisfiedBy reports whether every chord key is in pressed.
func (c Chord) SatisfiedBy(pressed map[string]bool) bool {
	if len(c.keys) == 0 {
		return false
	}
	for _, k := range c.keys {
		if !pressed[k] {
			return false
		}
	}
	return true
}

// Equal reports whether two chords contain the same keys.
func (c Chord) Equal(other Chord) bool {
	return slices.Equal(c.keys, other.keys)
}

func (c Chord) String() string {
	// Modifiers first reads the way users write chords.
	keys := append(c.Modifiers(), c.nonModifiers()...)
	return strings.Join(keys, "+")
}
