package recording

// EventKind identifies a shell notification.
type EventKind int

const (
	EventStateChanged EventKind = iota + 1
	EventRecordingStarted
	EventRecordingStopped
	EventLevelChanged
	EventRecordingError
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventRecordingStarted:
		return "recording_started"
	case EventRecordingStopped:
		return "recording_stopped"
	case EventLevelChanged:
		return "level_changed"
	case EventRecordingError:
		return "recording_error"
	default:
		return "unknown"
	}
}

// Event is a notification for the shell. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind       EventKind
	Mode       Mode
	Recording  bool
	Processing bool
	ByteCount  int
	Level      float32
	Message    string
}

// Notifier receives events on the controller goroutine. Implementations
// must not block; a shell notifier defers delivery to the shell's thread.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// Status is a snapshot of the controller state.
type Status struct {
	Mode       Mode    `json:"mode"`
	Recording  bool    `json:"recording"`
	Processing bool    `json:"processing"`
	Level      float32 `json:"level"`
}
