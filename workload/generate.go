package workload

import (
	"math"
	"math/rand"
)

// generation parameters shared with the correlator's own generator
const (
	genStddev   = 2.5
	genSaturate = 7.0
)

// Sample is one complex input value as fed to the correlator.
type Sample struct {
	Real float64
	Imag float64
}

// GenerateInput produces length deterministic complex samples for the
// given seed, mirroring the workload's generation algorithm: a
// Box-Muller transform with stddev 2.5, rounded to the nearest integer
// and saturated to the ±7 range of 4-bit data. Two calls with the same
// seed and length are bit-identical, which is what lets both
// environments start from the same input. The harness uses this for the
// self-consistency check and in tests; the in-container workload
// generates its own copy.
func GenerateInput(seed int64, length int) []Sample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]Sample, length)

	for i := range samples {
		u1 := rng.Float64()
		u2 := rng.Float64()
		if u1 == 0 {
			u1 = math.SmallestNonzeroFloat64
		}

		r := genStddev * math.Sqrt(-2.0*math.Log(u1))
		theta := 2 * math.Pi * u2

		a := math.Round(r * math.Cos(theta))
		b := math.Round(r * math.Sin(theta))

		samples[i].Real = saturate(a)
		samples[i].Imag = saturate(b)
	}
	return samples
}

func saturate(v float64) float64 {
	if v > genSaturate {
		return genSaturate
	}
	if v < -genSaturate {
		return -genSaturate
	}
	return v
}
