package conditioner

import (
	"errors"
	"fmt"

	"github.com/maxhawkins/go-webrtcvad"
)

const (
	vadRate = 16000
	// vadFrame is 30ms at 16 kHz.
	vadFrame = 480
	// vadPad keeps this many frames around detected speech so word onsets
	// and tails are not clipped.
	vadPad = 3
)

// Classifier labels 16-bit little-endian PCM frames as speech or not.
type Classifier interface {
	IsSpeech(pcm []byte, sampleRate int) (bool, error)
}

// ClassifierFactory creates a classifier with the given aggressiveness (0-3).
type ClassifierFactory func(aggressiveness int) (Classifier, error)

type webrtcClassifier struct {
	vad *webrtcvad.VAD
}

// NewWebRTC returns a classifier backed by the WebRTC voice activity detector.
func NewWebRTC(aggressiveness int) (Classifier, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("invalid vad aggressiveness %d", aggressiveness)
	}
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create vad: %w", err)
	}
	if err := vad.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("set vad mode: %w", err)
	}
	return &webrtcClassifier{vad: vad}, nil
}

func (c *webrtcClassifier) IsSpeech(pcm []byte, sampleRate int) (bool, error) {
	if !c.vad.ValidRateAndFrameLength(sampleRate, len(pcm)/2) {
		return false, fmt.Errorf("invalid vad frame: %d samples at %d Hz", len(pcm)/2, sampleRate)
	}
	return c.vad.Process(sampleRate, pcm)
}

// TrimSilence zeroes the parts of samples that cls classifies as non-speech.
// Classification runs on 30ms frames of a 16 kHz copy; the decisions are
// mapped back onto the original rate, and samples is modified in place.
// Audio shorter than one frame is returned unchanged.
func TrimSilence(samples []float32, sampleRate int, cls Classifier) ([]float32, error) {
	if cls == nil {
		return nil, errors.New("no classifier")
	}
	mono16k := Resample(samples, sampleRate, vadRate)
	frames := len(mono16k) / vadFrame
	if frames == 0 {
		return samples, nil
	}

	speech := make([]bool, frames)
	for i := range frames {
		pcm := toPCM16(mono16k[i*vadFrame : (i+1)*vadFrame])
		ok, err := cls.IsSpeech(pcm, vadRate)
		if err != nil {
			return nil, fmt.Errorf("classify frame %d: %w", i, err)
		}
		speech[i] = ok
	}

	keep := make([]bool, frames)
	for i, ok := range speech {
		if !ok {
			continue
		}
		for j := max(0, i-vadPad); j <= min(frames-1, i+vadPad); j++ {
			keep[j] = true
		}
	}

	// The partial frame at the end follows the last full frame.
	for i := range frames {
		if keep[i] {
			continue
		}
		start := srcIndex(i*vadFrame, sampleRate)
		end := srcIndex((i+1)*vadFrame, sampleRate)
		if i == frames-1 {
			end = len(samples)
		}
		clear(samples[start:min(end, len(samples))])
	}
	return samples, nil
}

// srcIndex maps a 16 kHz sample index back to sampleRate.
func srcIndex(i, sampleRate int) int {
	return int(int64(i) * int64(sampleRate) / vadRate)
}
