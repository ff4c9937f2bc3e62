package app

import (
	"go.aimuz.me/voxchord/internal/types"
	"go.aimuz.me/voxchord/notify"
	"go.aimuz.me/voxchord/recording"
)

// shellNotifier forwards controller events to the frontend. post must only
// queue the emit for the shell's thread; it runs on the controller goroutine.
type shellNotifier struct {
	post    func(name string, data any)
	desktop *notify.Notifier
	status  func(recording.Status) types.RecordingStatus
}

func (n *shellNotifier) Notify(ev recording.Event) {
	switch ev.Kind {
	case recording.EventStateChanged:
		n.post(EventRecordingState, n.status(recording.Status{
			Mode:       ev.Mode,
			Recording:  ev.Recording,
			Processing: ev.Processing,
		}))
	case recording.EventRecordingStarted:
		n.post(EventRecordingStarted, ev.Mode.String())
	case recording.EventRecordingStopped:
		n.post(EventRecordingStopped, types.RecordingStopped{ByteCount: ev.ByteCount})
	case recording.EventLevelChanged:
		n.post(EventLevelChanged, ev.Level)
	case recording.EventRecordingError:
		n.post(EventRecordingError, types.RecordingError{Message: ev.Message})
		if n.desktop != nil {
			go n.desktop.Error(ev.Message)
		}
	}
}
