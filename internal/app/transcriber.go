package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/voxchord/audiocapture"
	"go.aimuz.me/voxchord/conditioner"
	"go.aimuz.me/voxchord/history"
	"go.aimuz.me/voxchord/internal/types"
	"go.aimuz.me/voxchord/langdetect"
	"go.aimuz.me/voxchord/notify"
	"go.aimuz.me/voxchord/stt"
)

// recognizeTimeout bounds a single recognition call.
const recognizeTimeout = 60 * time.Second

// Transcriber is the recording handler: it recognizes each finished
// recording, stores it in history and tells the frontend.
type Transcriber struct {
	post    func(name string, data any)
	desktop *notify.Notifier

	mu         sync.RWMutex
	recognizer stt.Recognizer
	store      *history.Store
	keepAudio  bool
	ttl        time.Duration
}

// NewTranscriber creates a transcriber. recognizer and store may be nil.
func NewTranscriber(post func(name string, data any), desktop *notify.Notifier) *Transcriber {
	return &Transcriber{post: post, desktop: desktop}
}

// SetRecognizer replaces the recognition engine. Nil disables recognition.
func (t *Transcriber) SetRecognizer(r stt.Recognizer) {
	t.mu.Lock()
	t.recognizer = r
	t.mu.Unlock()
}

// SetHistory sets where transcripts are kept. A nil store disables history.
func (t *Transcriber) SetHistory(store *history.Store, keepAudio bool, ttl time.Duration) {
	t.mu.Lock()
	t.store, t.keepAudio, t.ttl = store, keepAudio, ttl
	t.mu.Unlock()
}

// Handle implements recording.Handler.
func (t *Transcriber) Handle(ctx context.Context, rec audiocapture.Recording, buf conditioner.Buffer) {
	t.mu.RLock()
	recognizer, store, keepAudio, ttl := t.recognizer, t.store, t.keepAudio, t.ttl
	t.mu.RUnlock()

	if recognizer == nil {
		t.fail("speech recognizer not configured")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	started := time.Now()
	res, err := recognizer.Recognize(ctx, buf)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("recognition cancelled", "session", rec.Session.ID)
			return
		}
		slog.Error("recognize speech", "recognizer", recognizer.Name(), "error", err)
		t.fail(err.Error())
		return
	}
	slog.Info("recognized speech",
		"session", rec.Session.ID,
		"recognizer", recognizer.Name(),
		"audio", res.Duration,
		"elapsed", time.Since(started),
		"chars", len(res.Text))
	if res.Text == "" {
		return
	}

	entry := &history.Entry{
		Text:       res.Text,
		Language:   res.Language,
		Confidence: res.Confidence,
		Duration:   res.Duration,
		Recognizer: recognizer.Name(),
	}
	if store != nil {
		var audio []float32
		if keepAudio {
			audio = rec.Samples
		}
		if err := store.Add(entry, audio, rec.Session.SampleRate, ttl); err != nil {
			slog.Warn("save history", "error", err)
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	t.post(EventTranscription, toTranscription(entry))
	if t.desktop != nil {
		t.desktop.Transcript(res.Text)
	}
}

func (t *Transcriber) fail(message string) {
	t.post(EventRecordingError, types.RecordingError{Message: message})
	if t.desktop != nil {
		t.desktop.Error(message)
	}
}

func toTranscription(e *history.Entry) types.Transcription {
	out := types.Transcription{
		ID:         e.ID,
		Text:       e.Text,
		Language:   e.Language,
		Confidence: e.Confidence,
		DurationMS: e.Duration.Milliseconds(),
		Recognizer: e.Recognizer,
		HasAudio:   e.HasAudio,
		CreatedAt:  e.CreatedAt.UnixMilli(),
	}
	if e.Language != "" {
		out.LanguageName = langdetect.Name(e.Language)
	}
	return out
}
