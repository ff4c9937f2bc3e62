// Package app provides the core application service for Wails bindings.
package app

// Event names for frontend communication.
const (
	EventRecordingState   = "recording-state"
	EventRecordingStarted = "recording-started"
	EventRecordingStopped = "recording-stopped"
	EventLevelChanged     = "level-changed"
	EventRecordingError   = "recording-error"
	EventTranscription    = "transcription"
	EventListenerBackend  = "listener-backend"
)
