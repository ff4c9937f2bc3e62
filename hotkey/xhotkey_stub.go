//go:build !windows && !linux && !darwin

package hotkey

import (
	"context"
	"errors"
)

// RegisteredBackend is unavailable on this platform.
type RegisteredBackend struct{}

// NewRegisteredBackend returns the registered-hotkey backend.
func NewRegisteredBackend() *RegisteredBackend { return &RegisteredBackend{} }

func (*RegisteredBackend) Name() string { return "x/hotkey" }

func (*RegisteredBackend) Probe(Chord) error {
	return errors.New("registered hotkeys not supported on this platform")
}

func (b *RegisteredBackend) Run(context.Context, Chord, func(KeyEvent)) error {
	return b.Probe(Chord{})
}
