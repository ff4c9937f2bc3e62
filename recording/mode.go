// Package recording decides when to record. It turns chord events and
// explicit start/stop requests into capture start/stop calls, telling
// hold-to-talk apart from tap-to-toggle by how long the chord was held.
package recording

import (
	"fmt"
	"strings"
)

// Mode is the recording mode reported to the shell.
type Mode int

const (
	Idle Mode = iota
	HoldCandidate
	Toggle
	Manual
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case HoldCandidate:
		return "hold_candidate"
	case Toggle:
		return "toggle"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// phase is the controller's complete state. Toggle with a pending stop and
// waiting for the recognition handoff are separate phases rather than flags,
// so contradictory combinations cannot exist.
type phase int

const (
	phaseIdle phase = iota
	phaseHoldCandidate
	phaseToggle
	phaseToggleStopping
	phaseManual
	phaseProcessing
)

func (p phase) mode() Mode {
	switch p {
	case phaseHoldCandidate:
		return HoldCandidate
	case phaseToggle, phaseToggleStopping:
		return Toggle
	case phaseManual:
		return Manual
	default:
		return Idle
	}
}

func (p phase) recording() bool {
	switch p {
	case phaseHoldCandidate, phaseToggle, phaseToggleStopping, phaseManual:
		return true
	}
	return false
}

func (p phase) String() string {
	switch p {
	case phaseToggleStopping:
		return "toggle_stopping"
	case phaseProcessing:
		return "processing"
	default:
		return p.mode().String()
	}
}

// Preference selects how a chord release is interpreted.
type Preference int

const (
	// PreferAuto decides by hold duration.
	PreferAuto Preference = iota
	// PreferHold always stops on release.
	PreferHold
	// PreferToggle always keeps recording after the first release.
	PreferToggle
)

// ParsePreference parses "auto", "hold" or "toggle".
func ParsePreference(s string) (Preference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PreferAuto, nil
	case "hold":
		return PreferHold, nil
	case "toggle":
		return PreferToggle, nil
	default:
		return PreferAuto, fmt.Errorf("unknown recording mode %q", s)
	}
}

func (p Preference) String() string {
	switch p {
	case PreferHold:
		return "hold"
	case PreferToggle:
		return "toggle"
	default:
		return "auto"
	}
}
