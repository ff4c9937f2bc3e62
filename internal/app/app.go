package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"golang.org/x/sync/errgroup"

	"go.aimuz.me/voxchord/audiocapture"
	"go.aimuz.me/voxchord/config"
	"go.aimuz.me/voxchord/history"
	"go.aimuz.me/voxchord/hotkey"
	"go.aimuz.me/voxchord/internal/types"
	"go.aimuz.me/voxchord/langdetect"
	"go.aimuz.me/voxchord/notify"
	"go.aimuz.me/voxchord/recording"
	"go.aimuz.me/voxchord/stt"
)

// commandTimeout bounds bound-method calls into the controller.
const commandTimeout = 5 * time.Second

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the recording logic lives in the
// recording, audiocapture and hotkey packages.
type Service struct {
	version  string
	logLevel *slog.LevelVar

	// UI references - set via Init
	app    *application.App
	window application.Window

	mu  sync.Mutex
	cfg *config.Config

	watcher     *config.Watcher
	history     *history.Store
	desktop     *notify.Notifier
	engine      *audiocapture.Engine
	focus       *hotkey.FocusBackend
	listener    *hotkey.Listener
	controller  *recording.Controller
	transcriber *Transcriber
	detector    *langdetect.Detector

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a new Service. Call Init() after the Wails app is created.
// logLevel, if set, follows the log_level config field.
func New(version string, logLevel *slog.LevelVar) *Service {
	return &Service{version: version, logLevel: logLevel}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init builds the recording pipeline and starts its goroutines.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg := s.loadConfig()
	s.cfg = cfg
	if s.logLevel != nil {
		s.logLevel.Set(ParseLogLevel(cfg.LogLevel))
	}

	s.desktop = notify.New(cfg.Notification)
	s.detector = langdetect.New()
	s.transcriber = NewTranscriber(s.emit, s.desktop)
	s.setupRecognizer(cfg)
	s.setupHistory(cfg)

	s.engine = audiocapture.New(audiocapture.NewPortAudio(), audiocapture.Config{
		DeviceID:   cfg.DeviceID,
		SampleRate: cfg.SampleRate,
	})
	s.controller = recording.NewController(recording.Options{
		Capture:  s.engine,
		Handler:  s.transcriber,
		Notifier: &shellNotifier{post: s.emit, desktop: s.desktop, status: s.withListener},
		Settings: controllerSettings(cfg),
	})

	s.focus = hotkey.NewFocusBackend(0)
	s.listener = hotkey.New(hotkey.Options{
		Debounce: cfg.Debounce(),
		Backends: []hotkey.Backend{
			hotkey.NewHookBackend(),
			hotkey.NewRegisteredBackend(),
			s.focus,
		},
		OnBackend: func(name string) { s.emit(EventListenerBackend, name) },
	})
	s.listener.Configure(chordOf(cfg))

	s.start()
}

func (s *Service) loadConfig() *config.Config {
	path, err := config.Path()
	if err != nil {
		slog.Error("get config path", "error", err)
		return config.Default()
	}

	w, err := config.NewWatcher(path, s.onConfigChange)
	if err != nil {
		slog.Error("load config", "path", path, "error", err)
		return config.Default()
	}
	s.watcher = w
	slog.Info("config loaded", "path", path)
	return w.Current()
}

func (s *Service) start() {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = g

	g.Go(func() error {
		return s.controller.Run(gctx, s.listener.Events())
	})

	if err := s.listener.Start(gctx); err != nil {
		if !errors.Is(err, hotkey.ErrNoBackend) {
			slog.Error("start key listener", "error", err)
		}
		s.emit(EventListenerBackend, "")
	}

	if s.watcher != nil {
		g.Go(func() error {
			s.watcher.Run()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.listener.Stop()
		if s.watcher != nil {
			s.watcher.Stop()
		}
		return nil
	})
}

// Shutdown stops the pipeline and releases resources. A recording in
// progress is discarded.
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
		if err := s.group.Wait(); err != nil {
			slog.Error("stop service", "error", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
}

func (s *Service) setupHistory(cfg *config.Config) {
	if !cfg.History.Enabled {
		return
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for history", "error", err)
		return
	}

	historyPath := filepath.Join(configDir, "voxchord", "history")
	store, err := history.Open(historyPath)
	if err != nil {
		slog.Error("init history", "error", err)
		return
	}
	s.history = store
	s.transcriber.SetHistory(store, cfg.History.KeepAudio, cfg.HistoryTTL())
	slog.Info("history initialized", "path", historyPath)
}

func (s *Service) setupRecognizer(cfg *config.Config) {
	r, err := stt.New(recognizerConfig(cfg))
	if err != nil {
		slog.Warn("speech recognizer unavailable", "error", err)
		s.transcriber.SetRecognizer(nil)
		return
	}
	s.transcriber.SetRecognizer(stt.WithLanguageDetection(r, s.detector))
	slog.Info("speech recognizer ready", "recognizer", r.Name())
}

// onConfigChange runs on the watcher goroutine after a valid reload.
func (s *Service) onConfigChange(old, cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	if s.controller == nil {
		return
	}
	if s.logLevel != nil {
		s.logLevel.Set(ParseLogLevel(cfg.LogLevel))
	}
	if cfg.RequiresIdle(old) {
		slog.Info("capture device change queued until idle", "device", cfg.DeviceID, "sample_rate", cfg.SampleRate)
	}
	s.controller.Apply(controllerSettings(cfg))
	s.listener.SetDebounce(cfg.Debounce())
	s.listener.Configure(chordOf(cfg))
	s.desktop.SetEnabled(cfg.Notification)

	if old == nil || old.Recognizer != cfg.Recognizer || old.Language != cfg.Language {
		s.setupRecognizer(cfg)
	}
	switch {
	case s.history == nil:
	case cfg.History.Enabled:
		s.transcriber.SetHistory(s.history, cfg.History.KeepAudio, cfg.HistoryTTL())
	default:
		s.transcriber.SetHistory(nil, false, 0)
	}
}

// emit queues an event for the frontend on the shell's thread. It never
// blocks, so it is safe from the controller and listener goroutines.
func (s *Service) emit(name string, data any) {
	if s.app == nil {
		return
	}
	application.InvokeAsync(func() {
		s.app.Event.Emit(name, data)
	})
}

func (s *Service) withListener(st recording.Status) types.RecordingStatus {
	out := types.RecordingStatus{
		Mode:       st.Mode.String(),
		Recording:  st.Recording,
		Processing: st.Processing,
		Level:      st.Level,
	}
	if s.listener != nil {
		out.Backend = s.listener.Backend()
		out.Chord = s.listener.Chord().String()
		out.DroppedKeys = s.listener.Dropped()
	}
	return out
}

// ShowWindow brings the main window to the front.
func (s *Service) ShowWindow() {
	if s.window != nil {
		s.window.Show()
		s.window.Focus()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording
// ─────────────────────────────────────────────────────────────────────────────

// StartRecording starts a recording from the UI.
func (s *Service) StartRecording() error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return s.controller.StartManual(ctx)
}

// StopRecording stops the current recording, however it was started.
func (s *Service) StopRecording() error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return s.controller.StopManual(ctx)
}

// GetStatus returns the current recording state.
func (s *Service) GetStatus() types.RecordingStatus {
	return s.withListener(s.controller.Status())
}

// ListDevices returns the available audio inputs.
func (s *Service) ListDevices() ([]types.Device, error) {
	devices, err := s.engine.ListDevices()
	if err != nil {
		return nil, err
	}
	out := make([]types.Device, len(devices))
	for i, d := range devices {
		out[i] = types.Device{
			ID:         d.ID,
			Name:       d.Name,
			Default:    d.Default,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Key events from the focused window
// ─────────────────────────────────────────────────────────────────────────────

// KeyEvent forwards a key transition seen by the focused window. It only
// has an effect when no global key listener is available.
func (s *Service) KeyEvent(key string, down bool) {
	s.focus.Feed(key, down)
}

// WindowBlurred releases keys held when the window loses focus.
func (s *Service) WindowBlurred() {
	s.focus.Blur()
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns up to limit recent transcripts, newest first.
func (s *Service) GetHistory(limit int) ([]types.Transcription, error) {
	if s.history == nil {
		return nil, nil
	}
	entries, err := s.history.List(limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]types.Transcription, len(entries))
	for i := range entries {
		out[i] = toTranscription(&entries[i])
	}
	return out, nil
}

// DeleteHistory removes one transcript and its audio.
func (s *Service) DeleteHistory(id string) error {
	if s.history == nil {
		return history.ErrNotFound
	}
	return s.history.Delete(id)
}

// GetHistoryAudio returns the audio kept with a transcript as a WAV file.
// The frontend receives the bytes base64 encoded.
func (s *Service) GetHistoryAudio(id string) ([]byte, error) {
	if s.history == nil {
		return nil, history.ErrNotFound
	}
	samples, rate, err := s.history.Audio(id)
	if err != nil {
		return nil, err
	}
	wav, err := stt.EncodeWAV(samples, rate)
	if err != nil {
		return nil, fmt.Errorf("encode history audio: %w", err)
	}
	return wav, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetConfig returns the active configuration.
func (s *Service) GetConfig() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cfg
}

// SaveConfig validates and writes cfg. The running pipeline picks it up
// through the config watcher.
func (s *Service) SaveConfig(cfg config.Config) error {
	if err := config.Validate(&cfg); err != nil {
		return err
	}
	return cfg.Save()
}

// GetLanguages returns the recognition languages offered in settings.
func (s *Service) GetLanguages() []types.LanguageOption {
	out := []types.LanguageOption{{Code: langdetect.Auto, Name: langdetect.Name(langdetect.Auto)}}
	for _, lang := range langdetect.DefaultLanguages {
		code := langdetect.Code(lang)
		out = append(out, types.LanguageOption{
			Code:       code,
			Name:       langdetect.Name(code),
			NativeName: langdetect.NativeName(code),
		})
	}
	return out
}
