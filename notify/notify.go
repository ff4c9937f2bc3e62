// Package notify shows desktop notifications.
package notify

import (
	"log/slog"
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

// Title is shown on every notification.
const Title = "Voxchord"

// Notifier posts desktop notifications while enabled.
type Notifier struct {
	enabled atomic.Bool
	send    func(title, message string) error
}

// New returns a notifier backed by the platform notification service.
func New(enabled bool) *Notifier {
	beeep.AppName = Title
	n := &Notifier{send: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
	n.enabled.Store(enabled)
	return n
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// Enabled reports whether notifications are shown.
func (n *Notifier) Enabled() bool {
	return n.enabled.Load()
}

// Notify shows message. Failures are logged and otherwise ignored.
func (n *Notifier) Notify(message string) {
	if !n.enabled.Load() || message == "" {
		return
	}
	if err := n.send(Title, message); err != nil {
		slog.Debug("desktop notification", "error", err)
	}
}

// Error shows a recording failure.
func (n *Notifier) Error(message string) {
	n.Notify("Recording failed: " + message)
}

// Transcript shows a finished transcript, shortened to fit a notification.
func (n *Notifier) Transcript(text string) {
	n.Notify(truncate(text, 120))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
