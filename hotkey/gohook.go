package hotkey

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"

	hook "github.com/robotn/gohook"
)

// HookBackend listens to every key event through a native global hook
// (libuiohook). It is the primary backend.
type HookBackend struct{}

// NewHookBackend returns the global hook backend.
func NewHookBackend() *HookBackend { return &HookBackend{} }

func (*HookBackend) Name() string { return "gohook" }

// Probe rejects environments where a global hook cannot observe other
// applications: sandboxes and sessions without an X server.
func (*HookBackend) Probe(Chord) error {
	if os.Getenv("FLATPAK_ID") != "" {
		return errors.New("sandboxed (flatpak)")
	}
	if runtime.GOOS == "linux" {
		if os.Getenv("DISPLAY") == "" {
			return errors.New("no X display")
		}
		if os.Getenv("WAYLAND_DISPLAY") != "" && os.Getenv("XDG_SESSION_TYPE") == "wayland" {
			return errors.New("wayland session blocks global key hooks")
		}
	}
	return nil
}

func (*HookBackend) Run(ctx context.Context, _ Chord, sink func(KeyEvent)) error {
	evChan := hook.Start()
	defer hook.End()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-evChan:
			if !ok {
				return errors.New("hook event stream closed")
			}
			var down bool
			switch ev.Kind {
			case hook.KeyHold:
				down = true
			case hook.KeyUp:
			default:
				// KeyDown is the "typed" event and is never sent for modifiers.
				continue
			}
			name := hookKeyName(ev.Keycode)
			if name == "" && ev.Keychar != hook.CharUndefined && ev.Keychar != 0 {
				name = Normalize(string(ev.Keychar))
			}
			if name == "" {
				continue
			}
			sink(KeyEvent{Token: name, Down: down, At: ev.When})
		}
	}
}

// extraKeycodes are libuiohook virtual codes missing from hook.Keycode.
var extraKeycodes = map[uint16]string{
	3613: "rctrl", // VC_CONTROL_R
}

var hookKeyNames = sync.OnceValue(func() map[uint16]string {
	return invertKeycodes(hook.Keycode, hook.Special)
})

// hookKeyName maps a portable libuiohook keycode to a chord token, or ""
// if the code is unknown. Rawcodes are platform specific and are not used.
func hookKeyName(code uint16) string {
	return hookKeyNames()[code]
}

// invertKeycodes builds a code to token table from a name to code map.
// Shifted names share a code with their base key and are skipped. When two
// names share a code the shorter one wins, then the lexically smaller one.
func invertKeycodes(codes map[string]uint16, shifted map[string]string) map[uint16]string {
	out := make(map[uint16]string, len(codes)+len(extraKeycodes))
	for name, code := range codes {
		if _, ok := shifted[name]; ok {
			continue
		}
		if prev, ok := out[code]; ok {
			if len(prev) < len(name) || (len(prev) == len(name) && prev < name) {
				continue
			}
		}
		out[code] = name
	}
	for code, name := range extraKeycodes {
		if _, ok := out[code]; !ok {
			out[code] = name
		}
	}
	for code, name := range out {
		out[code] = Normalize(name)
	}
	return out
}
