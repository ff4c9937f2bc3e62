// Package types provides shared type definitions for the application.
package types

// RecordingStatus is the recording state shown by the frontend.
type RecordingStatus struct {
	Mode        string  `json:"mode"` // "idle", "hold_candidate", "toggle", "manual"
	Recording   bool    `json:"recording"`
	Processing  bool    `json:"processing"`
	Level       float32 `json:"level"`   // 0-1
	Backend     string  `json:"backend"` // active key listener, "" for manual only
	Chord       string  `json:"chord"`
	DroppedKeys int     `json:"droppedKeys"` // key events lost to a full queue
}

// RecordingStopped is emitted when a capture ends.
type RecordingStopped struct {
	ByteCount int `json:"byteCount"` // 16-bit PCM size of the captured audio
}

// RecordingError is emitted when a recording could not be made or recognized.
type RecordingError struct {
	Message string `json:"message"`
}

// Transcription is a recognized recording, either fresh or from history.
type Transcription struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Language     string   `json:"language,omitempty"`
	LanguageName string   `json:"languageName,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"` // 0-1
	DurationMS   int64    `json:"durationMs"`
	Recognizer   string   `json:"recognizer,omitempty"`
	HasAudio     bool     `json:"hasAudio"`
	CreatedAt    int64    `json:"createdAt"` // Unix timestamp in milliseconds
}

// Device is an audio input the user can pick.
type Device struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Default    bool    `json:"default"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sampleRate"`
}

// LanguageOption is an entry of the recognition language picker.
type LanguageOption struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"nativeName,omitempty"`
}
