package conditioner

import "time"

// gateFrame is the envelope window of the noise gate.
const gateFrame = 20 * time.Millisecond

// Gate silences every 20ms frame whose RMS level is below thresholdDB, or
// more than relativeDB below the loudest frame of the buffer. relativeDB of
// zero disables the relative check. samples is modified in place. An
// all-silent buffer is returned as is.
func Gate(samples []float32, sampleRate int, thresholdDB, relativeDB float64) []float32 {
	frame := int(int64(sampleRate) * int64(gateFrame) / int64(time.Second))
	if frame <= 0 || len(samples) == 0 {
		return samples
	}

	levels := make([]float64, 0, len(samples)/frame+1)
	peak := silenceDB
	for start := 0; start < len(samples); start += frame {
		end := min(start+frame, len(samples))
		db := toDBFS(rms(samples[start:end]))
		levels = append(levels, db)
		peak = max(peak, db)
	}
	if peak <= silenceDB {
		return samples
	}

	for i, db := range levels {
		open := db >= thresholdDB
		if relativeDB < 0 && db-peak < relativeDB {
			open = false
		}
		if open {
			continue
		}
		start := i * frame
		end := min(start+frame, len(samples))
		clear(samples[start:end])
	}
	return samples
}
