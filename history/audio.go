package history

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jj11hh/opus"

	"go.aimuz.me/voxchord/conditioner"
)

// fallbackRate is used when the capture rate is not one opus accepts.
const fallbackRate = 16000

// maxPacket bounds a single encoded 20ms frame.
const maxPacket = 4000

func opusRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// encodeAudio compresses mono samples into length-prefixed opus packets of
// 20ms each. It returns the rate the audio was encoded at.
func encodeAudio(samples []float32, rate int) ([]byte, int, error) {
	if rate <= 0 {
		return nil, 0, fmt.Errorf("invalid sample rate %d", rate)
	}
	if !opusRate(rate) {
		samples = conditioner.Resample(samples, rate, fallbackRate)
		rate = fallbackRate
	}

	enc, err := opus.NewEncoder(rate, 1, opus.AppVoIP)
	if err != nil {
		return nil, 0, fmt.Errorf("create encoder: %w", err)
	}

	frame := rate / 50
	pcm := make([]float32, frame)
	packet := make([]byte, maxPacket)
	var out []byte
	for start := 0; start < len(samples); start += frame {
		n := copy(pcm, samples[start:min(start+frame, len(samples))])
		clear(pcm[n:])

		size, err := enc.EncodeFloat32(pcm, packet)
		if err != nil {
			return nil, 0, fmt.Errorf("encode frame at %d: %w", start, err)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(size))
		out = append(out, packet[:size]...)
	}
	return out, rate, nil
}

// decodeAudio reverses encodeAudio.
func decodeAudio(data []byte, rate int) ([]float32, error) {
	dec, err := opus.NewDecoder(rate, 1)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	frame := rate / 50
	pcm := make([]float32, frame)
	var out []float32
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, errors.New("truncated packet header")
		}
		size := int(binary.LittleEndian.Uint16(data))
		data = data[2:]
		if size > len(data) {
			return nil, errors.New("truncated packet")
		}
		n, err := dec.DecodeFloat32(data[:size], pcm)
		if err != nil {
			return nil, fmt.Errorf("decode packet: %w", err)
		}
		out = append(out, pcm[:n]...)
		data = data[size:]
	}
	return out, nil
}
