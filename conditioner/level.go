package conditioner

import "math"

// silenceDB is reported for an all-zero signal.
const silenceDB = -120.0

// rms returns the root mean square of samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// toDBFS converts a linear amplitude to dBFS, floored at silenceDB.
func toDBFS(amp float64) float64 {
	if amp <= 0 {
		return silenceDB
	}
	return max(20*math.Log10(amp), silenceDB)
}

// LevelDBFS returns the RMS level of samples in dBFS.
func LevelDBFS(samples []float32) float64 {
	return toDBFS(rms(samples))
}

// toPCM16 converts float samples to little-endian 16-bit PCM.
func toPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(max(-1, min(1, s)) * math.MaxInt16)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
