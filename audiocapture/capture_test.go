package audiocapture

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeStream struct {
	startErr error
	started  bool
	stopped  bool
	closed   bool
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeStream) Stop() error {
	s.stopped = true
	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeDevice records opened streams and exposes the audio callback.
type fakeDevice struct {
	mu       sync.Mutex
	openErr  error
	startErr error
	opens    int
	lastCfg  StreamConfig
	callback func([]float32)
	streams  []*fakeStream
}

func (d *fakeDevice) Open(cfg StreamConfig, onAudio func([]float32)) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.lastCfg = cfg
	d.callback = onAudio
	s := &fakeStream{startErr: d.startErr}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "mic", Name: "mic", Default: true, MaxInputChannels: 1}}, nil
}

func (d *fakeDevice) feed(samples []float32) {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	cb(samples)
}

func TestEngine_StartStop(t *testing.T) {
	dev := &fakeDevice{}
	e := New(dev, Config{DeviceID: "mic", SampleRate: 16000})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !e.IsRecording() {
		t.Fatal("IsRecording = false after Start")
	}
	if dev.lastCfg.Channels != 1 || dev.lastCfg.SampleRate != 16000 || dev.lastCfg.DeviceID != "mic" {
		t.Errorf("stream config = %+v", dev.lastCfg)
	}

	dev.feed(make([]float32, 160))
	dev.feed(make([]float32, 160))

	rec := e.Stop()
	if e.IsRecording() {
		t.Error("IsRecording = true after Stop")
	}
	if len(rec.Samples) != 320 {
		t.Errorf("len(Samples) = %d, want 320", len(rec.Samples))
	}
	if rec.ByteCount() != 640 {
		t.Errorf("ByteCount = %d, want 640", rec.ByteCount())
	}
	if rec.Duration() != 20*time.Millisecond {
		t.Errorf("Duration = %v, want 20ms", rec.Duration())
	}
	if rec.Session.SampleRate != 16000 || rec.Session.Channels != 1 {
		t.Errorf("Session = %+v", rec.Session)
	}
	s := dev.streams[0]
	if !s.stopped || !s.closed {
		t.Errorf("stream stopped=%v closed=%v, want both", s.stopped, s.closed)
	}
}

func TestEngine_StartWhileActive(t *testing.T) {
	dev := &fakeDevice{}
	e := New(dev, Config{})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := e.session.ID

	time.Sleep(10 * time.Millisecond)
	if err := e.Start(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Start error = %v, want ErrAlreadyActive", err)
	}
	if !e.IsRecording() {
		t.Error("IsRecording = false after rejected Start")
	}
	if dev.opens != 1 {
		t.Errorf("opens = %d, want 1", dev.opens)
	}
	if e.session.ID != first {
		t.Error("session replaced by rejected Start")
	}
	e.Stop()
}

func TestEngine_StopWhileIdle(t *testing.T) {
	e := New(&fakeDevice{}, Config{})
	rec := e.Stop()
	if !rec.IsEmpty() || rec.ByteCount() != 0 || rec.Duration() != 0 {
		t.Errorf("Stop while idle = %+v, want empty", rec)
	}
}

func TestEngine_DeviceFailure(t *testing.T) {
	tests := []struct {
		name   string
		dev    *fakeDevice
		wantOp string
	}{
		{"open", &fakeDevice{openErr: errors.New("no device")}, "open"},
		{"start", &fakeDevice{startErr: errors.New("busy")}, "start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.dev, Config{})
			err := e.Start()

			var ce *CaptureError
			if !errors.As(err, &ce) {
				t.Fatalf("Start error = %v, want *CaptureError", err)
			}
			if ce.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", ce.Op, tt.wantOp)
			}
			if e.IsRecording() {
				t.Error("IsRecording = true after failure")
			}
			if len(tt.dev.streams) > 0 && !tt.dev.streams[0].closed {
				t.Error("half-open stream left behind")
			}
			// A later start must still be possible.
			tt.dev.openErr, tt.dev.startErr = nil, nil
			if err := e.Start(); err != nil {
				t.Fatalf("retry Start: %v", err)
			}
			e.Stop()
		})
	}
}

func TestEngine_SettingsNeedIdle(t *testing.T) {
	e := New(&fakeDevice{}, Config{})
	if err := e.SetSampleRate(48000); err != nil {
		t.Fatalf("SetSampleRate idle: %v", err)
	}
	if err := e.SetSampleRate(0); err == nil {
		t.Error("SetSampleRate(0) should fail")
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.SetDevice("other"); !errors.Is(err, ErrBusy) {
		t.Errorf("SetDevice while active = %v, want ErrBusy", err)
	}
	if err := e.SetSampleRate(16000); !errors.Is(err, ErrBusy) {
		t.Errorf("SetSampleRate while active = %v, want ErrBusy", err)
	}
	rec := e.Stop()
	if rec.Session.SampleRate != 48000 {
		t.Errorf("session rate = %d, want 48000", rec.Session.SampleRate)
	}

	if err := e.SetDevice("other"); err != nil {
		t.Errorf("SetDevice idle: %v", err)
	}
	if e.DeviceID() != "other" {
		t.Errorf("DeviceID = %q", e.DeviceID())
	}
}

func TestEngine_Level(t *testing.T) {
	dev := &fakeDevice{}
	e := New(dev, Config{})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	tests := []struct {
		name string
		amp  float32
		want float32
	}{
		{"silence", 0, 0},
		{"quiet", 0.1, 0.4},
		{"clipped", 0.9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := make([]float32, 160)
			for i := range chunk {
				chunk[i] = tt.amp
			}
			dev.feed(chunk)
			if got := e.Level(); math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("Level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_ListDevices(t *testing.T) {
	e := New(&fakeDevice{}, Config{})
	devs, err := e.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devs) != 1 || !devs[0].Default {
		t.Errorf("ListDevices = %+v", devs)
	}
}
