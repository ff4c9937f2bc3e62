package recording

import (
	"errors"
	"time"
)

// ErrAlreadyActive is returned when a start is requested while a recording
// is running or the previous one is still being handed off.
var ErrAlreadyActive = errors.New("recording: already active")

// DefaultHoldThreshold separates a tap from a hold.
const DefaultHoldThreshold = 250 * time.Millisecond

// Action is the capture call a transition asks for.
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
)

// Machine is the transition function. It performs no I/O; the caller
// executes the returned Action. Not safe for concurrent use.
type Machine struct {
	phase         phase
	pref          Preference
	holdThreshold time.Duration
	onChange      func(from, to phase)
}

// NewMachine returns a machine in Idle.
func NewMachine(holdThreshold time.Duration, pref Preference) *Machine {
	if holdThreshold <= 0 {
		holdThreshold = DefaultHoldThreshold
	}
	return &Machine{holdThreshold: holdThreshold, pref: pref}
}

// Mode returns the public mode.
func (m *Machine) Mode() Mode { return m.phase.mode() }

// IsRecording reports whether capture should be running.
func (m *Machine) IsRecording() bool { return m.phase.recording() }

// IsProcessing reports whether a finished recording is being handed off.
func (m *Machine) IsProcessing() bool { return m.phase == phaseProcessing }

// SetHoldThreshold changes the tap/hold boundary for future releases.
func (m *Machine) SetHoldThreshold(d time.Duration) {
	if d > 0 {
		m.holdThreshold = d
	}
}

// SetPreference changes how future releases are interpreted.
func (m *Machine) SetPreference(p Preference) { m.pref = p }

func (m *Machine) set(to phase) {
	from := m.phase
	if from == to {
		return
	}
	m.phase = to
	if m.onChange != nil {
		m.onChange(from, to)
	}
}

// Engaged handles a chord press. It returns ErrAlreadyActive when the press
// is ignored because a handoff is still in flight.
func (m *Machine) Engaged() (Action, error) {
	switch m.phase {
	case phaseIdle:
		m.set(phaseHoldCandidate)
		return ActionStart, nil
	case phaseToggle:
		m.set(phaseToggleStopping)
		return ActionNone, nil
	case phaseProcessing:
		return ActionNone, ErrAlreadyActive
	default:
		// Already capturing; a second press never starts another session.
		return ActionNone, nil
	}
}

// Released handles a chord release after holding it for d.
func (m *Machine) Released(d time.Duration) Action {
	switch m.phase {
	case phaseHoldCandidate:
		if m.keepsRecording(d) {
			m.set(phaseToggle)
			return ActionNone
		}
		m.set(phaseProcessing)
		return ActionStop
	case phaseToggleStopping:
		m.set(phaseProcessing)
		return ActionStop
	default:
		// Stray release.
		return ActionNone
	}
}

func (m *Machine) keepsRecording(held time.Duration) bool {
	switch m.pref {
	case PreferHold:
		return false
	case PreferToggle:
		return true
	default:
		return held < m.holdThreshold
	}
}

// ManualStart handles an explicit start request.
func (m *Machine) ManualStart() (Action, error) {
	if m.phase != phaseIdle {
		return ActionNone, ErrAlreadyActive
	}
	m.set(phaseManual)
	return ActionStart, nil
}

// ManualStop handles an explicit stop request. It ends any recording,
// whichever way it was started.
func (m *Machine) ManualStop() Action {
	if !m.phase.recording() {
		return ActionNone
	}
	m.set(phaseProcessing)
	return ActionStop
}

// StartFailed returns to Idle after capture could not be started.
func (m *Machine) StartFailed() {
	if m.phase.recording() {
		m.set(phaseIdle)
	}
}

// HandoffDone returns to Idle once the stopped recording has been handed
// off or dropped.
func (m *Machine) HandoffDone() {
	if m.phase == phaseProcessing {
		m.set(phaseIdle)
	}
}
