package conditioner

import (
	"errors"
	"math"
	"testing"
)

const rate = 16000

// tone returns a sine of the given RMS level in dBFS.
func tone(n int, dbfs float64) []float32 {
	amp := math.Pow(10, dbfs/20) * math.Sqrt2
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	return out
}

func maxAbs(s []float32) float64 {
	var m float64
	for _, v := range s {
		m = math.Max(m, math.Abs(float64(v)))
	}
	return m
}

// energyClassifier calls a frame speech when its RMS exceeds a threshold.
type energyClassifier struct{ threshold float64 }

func (c energyClassifier) IsSpeech(pcm []byte, _ int) (bool, error) {
	var sum float64
	n := len(pcm) / 2
	for i := range n {
		v := float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) > c.threshold, nil
}

type panicClassifier struct{}

func (panicClassifier) IsSpeech([]byte, int) (bool, error) { panic("boom") }

func TestGate(t *testing.T) {
	t.Run("quiet buffer fully gated", func(t *testing.T) {
		out := Gate(tone(rate, -50), rate, -45, -30)
		if m := maxAbs(out); m != 0 {
			t.Errorf("max |sample| = %v, want 0", m)
		}
	})

	t.Run("loud segment kept", func(t *testing.T) {
		in := make([]float32, 3*rate)
		copy(in[rate:], tone(rate, -10))
		out := Gate(in, rate, -45, -30)

		if m := maxAbs(out[:rate]); m != 0 {
			t.Errorf("leading silence max = %v, want 0", m)
		}
		if m := maxAbs(out[2*rate:]); m != 0 {
			t.Errorf("trailing silence max = %v, want 0", m)
		}
		if db := LevelDBFS(out[rate : 2*rate]); math.Abs(db+10) > 0.5 {
			t.Errorf("segment level = %.1f dBFS, want about -10", db)
		}
	})

	t.Run("relative threshold", func(t *testing.T) {
		in := append(tone(rate/2, -40), tone(rate/2, -5)...)
		out := Gate(in, rate, -60, -30)
		if m := maxAbs(out[:rate/2]); m != 0 {
			t.Errorf("-40 dBFS part kept at %v despite 35 dB below peak", m)
		}
		if m := maxAbs(out[rate/2:]); m == 0 {
			t.Error("loud part gated")
		}
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     []float32
		target float64
	}{
		{"quiet to -20", tone(rate, -40), -20},
		{"loud to -20", tone(rate, -3), -20},
		{"pathological boost", tone(rate, -60), 20},
		{"near silent +40", tone(rate, -100), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.in, tt.target)
			if m := maxAbs(out); m > 1 {
				t.Errorf("max |sample| = %v, want <= 1", m)
			}
		})
	}

	out := Normalize(tone(rate, -40), -20)
	if db := LevelDBFS(out); math.Abs(db+20) > 0.5 {
		t.Errorf("normalized level = %.2f dBFS, want about -20", db)
	}
}

func TestTrimSilence(t *testing.T) {
	t.Run("zeros non speech", func(t *testing.T) {
		in := make([]float32, 2*rate)
		copy(in[rate/2:], tone(rate/2, -10))
		for i := range rate / 2 {
			in[i] = 0.001
		}

		out, err := TrimSilence(in, rate, energyClassifier{threshold: 0.01})
		if err != nil {
			t.Fatalf("TrimSilence: %v", err)
		}
		// Padding keeps a few frames before the first speech frame.
		if m := maxAbs(out[:rate/2-(vadPad+1)*vadFrame]); m != 0 {
			t.Errorf("noise before speech max = %v, want 0", m)
		}
		if m := maxAbs(out[rate/2 : rate]); m == 0 {
			t.Error("speech removed")
		}
	})

	t.Run("resampled input", func(t *testing.T) {
		const hi = 48000
		in := make([]float32, hi)
		copy(in[hi/2:], tone(hi/2, -10))
		out, err := TrimSilence(in, hi, energyClassifier{threshold: 0.01})
		if err != nil {
			t.Fatalf("TrimSilence: %v", err)
		}
		if len(out) != hi {
			t.Fatalf("len = %d, want %d", len(out), hi)
		}
	})

	t.Run("shorter than a frame", func(t *testing.T) {
		in := tone(100, -10)
		out, err := TrimSilence(in, rate, energyClassifier{threshold: 1})
		if err != nil {
			t.Fatalf("TrimSilence: %v", err)
		}
		if maxAbs(out) == 0 {
			t.Error("short buffer should pass through")
		}
	})
}

func TestResample(t *testing.T) {
	in := make([]float32, 48000)
	if got := len(Resample(in, 48000, 16000)); got != 16000 {
		t.Errorf("48k->16k len = %d, want 16000", got)
	}
	if got := len(Resample(in[:8000], 8000, 16000)); got != 16000 {
		t.Errorf("8k->16k len = %d, want 16000", got)
	}
	same := Resample(in, 16000, 16000)
	if &same[0] != &in[0] {
		t.Error("matching rates should return the input")
	}
}

func TestProcess_SilenceIsIdempotent(t *testing.T) {
	c := New(DefaultOptions(), func(int) (Classifier, error) {
		return energyClassifier{threshold: 0.01}, nil
	})
	in := make([]float32, rate)
	out := c.Process(in, rate)

	if out.SampleRate != rate || len(out.Samples) != rate {
		t.Fatalf("out = %d samples at %d", len(out.Samples), out.SampleRate)
	}
	if m := maxAbs(out.Samples); m > 1e-6 {
		t.Errorf("silence produced max %v", m)
	}
}

func TestProcess_DegradedStages(t *testing.T) {
	tests := []struct {
		name    string
		factory ClassifierFactory
	}{
		{"classifier unavailable", func(int) (Classifier, error) { return nil, errors.New("no vad") }},
		{"classifier panics", func(int) (Classifier, error) { return panicClassifier{}, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{VAD: true}
			in := tone(rate, -10)
			out := New(opts, tt.factory).Process(in, rate)

			for i := range in {
				if out.Samples[i] != in[i] {
					t.Fatalf("sample %d changed: %v != %v", i, out.Samples[i], in[i])
				}
			}
		})
	}
}

func TestProcess_DoesNotModifyInput(t *testing.T) {
	in := tone(rate, -50)
	orig := append([]float32(nil), in...)
	New(Options{NoiseGate: true, GateThresholdDB: -45}, nil).Process(in, rate)
	for i := range in {
		if in[i] != orig[i] {
			t.Fatal("input modified")
		}
	}
}

func TestProcess_Empty(t *testing.T) {
	out := New(DefaultOptions(), nil).Process(nil, rate)
	if len(out.Samples) != 0 {
		t.Errorf("len = %d, want 0", len(out.Samples))
	}
}
