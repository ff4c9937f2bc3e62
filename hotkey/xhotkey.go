//go:build windows || linux || darwin

package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.design/x/hotkey"
)

// RegisteredBackend registers the chord with the OS hotkey service. It only
// sees the chord itself, so it needs at least one non-modifier key, and the
// reported key events are synthesized from keydown/keyup notifications.
type RegisteredBackend struct{}

// NewRegisteredBackend returns the registered-hotkey backend.
func NewRegisteredBackend() *RegisteredBackend { return &RegisteredBackend{} }

func (*RegisteredBackend) Name() string { return "x/hotkey" }

func (*RegisteredBackend) Probe(chord Chord) error {
	_, _, err := registration(chord)
	return err
}

func (*RegisteredBackend) Run(ctx context.Context, chord Chord, sink func(KeyEvent)) error {
	mods, key, err := registration(chord)
	if err != nil {
		return err
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %s: %w", chord, err)
	}
	defer func() { _ = hk.Unregister() }()

	keys := chord.Keys()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hk.Keydown():
			for _, k := range keys {
				sink(KeyEvent{Token: k, Down: true})
			}
		case <-hk.Keyup():
			for i := len(keys) - 1; i >= 0; i-- {
				sink(KeyEvent{Token: keys[i], Down: false})
			}
		}
	}
}

func registration(chord Chord) ([]hotkey.Modifier, hotkey.Key, error) {
	keys := chord.nonModifiers()
	if len(keys) != 1 {
		return nil, 0, errors.New("registered hotkeys need exactly one non-modifier key")
	}
	key, ok := lookupKey(keys[0])
	if !ok {
		return nil, 0, fmt.Errorf("unsupported key %q", keys[0])
	}

	var mods []hotkey.Modifier
	for _, m := range chord.Modifiers() {
		mod, ok := modifiers[m]
		if !ok {
			return nil, 0, fmt.Errorf("unsupported modifier %q", m)
		}
		mods = append(mods, mod)
	}
	return mods, key, nil
}

func lookupKey(token string) (hotkey.Key, bool) {
	if k, ok := namedKeys[token]; ok {
		return k, true
	}
	if len(token) == 1 {
		c := strings.ToUpper(token)[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return letterKeys[c-'A'], true
		case c >= '0' && c <= '9':
			return digitKeys[c-'0'], true
		}
	}
	return 0, false
}

var letterKeys = [...]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = [...]hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

var namedKeys = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"tab":    hotkey.KeyTab,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"f1":     hotkey.KeyF1,
	"f2":     hotkey.KeyF2,
	"f3":     hotkey.KeyF3,
	"f4":     hotkey.KeyF4,
	"f5":     hotkey.KeyF5,
	"f6":     hotkey.KeyF6,
	"f7":     hotkey.KeyF7,
	"f8":     hotkey.KeyF8,
	"f9":     hotkey.KeyF9,
	"f10":    hotkey.KeyF10,
	"f11":    hotkey.KeyF11,
	"f12":    hotkey.KeyF12,
}
