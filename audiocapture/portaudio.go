package audiocapture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is the Device backed by the system audio stack. The library is
// initialized while at least one stream or query is in flight.
type PortAudio struct {
	mu   sync.Mutex
	refs int
}

// NewPortAudio returns a PortAudio device.
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
	}
	p.refs++
	return nil
}

func (p *PortAudio) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		return
	}
	p.refs--
	if p.refs == 0 {
		_ = portaudio.Terminate()
	}
}

// Open opens a float32 callback stream on the configured device.
func (p *PortAudio) Open(cfg StreamConfig, onAudio func(in []float32)) (Stream, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}

	dev, err := findInput(cfg.DeviceID)
	if err != nil {
		p.release()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = max(cfg.Channels, 1)
	params.SampleRate = float64(cfg.SampleRate)
	// 10ms chunks keep level updates smooth.
	params.FramesPerBuffer = cfg.SampleRate / 100

	stream, err := portaudio.OpenStream(params, onAudio)
	if err != nil {
		p.release()
		return nil, fmt.Errorf("open %q at %d Hz: %w", dev.Name, cfg.SampleRate, err)
	}
	return &paStream{Stream: stream, owner: p}, nil
}

// Devices lists devices with at least one input channel.
func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var defName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defName = def.Name
	}

	var out []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			ID:                d.Name,
			Name:              d.Name,
			Default:           d.Name == defName,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}

func findInput(id string) (*portaudio.DeviceInfo, error) {
	if id == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == id && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", id)
}

type paStream struct {
	*portaudio.Stream
	owner *PortAudio
	once  sync.Once
}

func (s *paStream) Close() error {
	err := s.Stream.Close()
	s.once.Do(s.owner.release)
	return err
}
