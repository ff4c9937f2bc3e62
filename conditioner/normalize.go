package conditioner

import "math"

// limiterKnee is where the soft limiter starts bending the curve.
const limiterKnee = 0.8

// Normalize applies the gain that brings the RMS level to targetDBFS,
// passing the result through a tanh soft limiter so no sample exceeds
// full scale. samples is modified in place. Silent input is returned
// unchanged.
func Normalize(samples []float32, targetDBFS float64) []float32 {
	level := rms(samples)
	if level <= 0 {
		return samples
	}
	gainDB := targetDBFS - toDBFS(level)
	gain := math.Pow(10, gainDB/20)
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return samples
	}

	for i, s := range samples {
		samples[i] = float32(softLimit(float64(s) * gain))
	}
	return samples
}

// softLimit is linear up to the knee and compresses toward ±1 above it.
func softLimit(x float64) float64 {
	a := math.Abs(x)
	if a <= limiterKnee {
		return x
	}
	if math.IsNaN(a) {
		return 0
	}
	y := limiterKnee + (1-limiterKnee)*math.Tanh((a-limiterKnee)/(1-limiterKnee))
	return math.Copysign(min(y, 1), x)
}
