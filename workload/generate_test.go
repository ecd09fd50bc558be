package workload

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxcorr/xcompat/types"
)

func TestGenerateInputDeterministic(t *testing.T) {
	a := GenerateInput(types.TestSeed, 4096)
	b := GenerateInput(types.TestSeed, 4096)
	require.Equal(t, a, b, "same seed and length must be bit-identical")
}

func TestGenerateInputSeedSensitivity(t *testing.T) {
	a := GenerateInput(types.TestSeed, 4096)
	b := GenerateInput(types.TestSeed+1, 4096)
	assert.NotEqual(t, a, b)
}

func TestGenerateInputRange(t *testing.T) {
	samples := GenerateInput(types.TestSeed, 100000)
	require.Len(t, samples, 100000)

	for _, s := range samples {
		assert.LessOrEqual(t, s.Real, genSaturate)
		assert.GreaterOrEqual(t, s.Real, -genSaturate)
		assert.LessOrEqual(t, s.Imag, genSaturate)
		assert.GreaterOrEqual(t, s.Imag, -genSaturate)

		// Values are rounded to integers before saturation.
		assert.Equal(t, math.Trunc(s.Real), s.Real)
		assert.Equal(t, math.Trunc(s.Imag), s.Imag)
	}
}

func TestGenerateInputDistribution(t *testing.T) {
	samples := GenerateInput(types.TestSeed, 100000)

	var sum, sumSq float64
	for _, s := range samples {
		sum += s.Real
		sumSq += s.Real * s.Real
	}
	n := float64(len(samples))
	mean := sum / n
	variance := sumSq/n - mean*mean

	// Gaussian with stddev 2.5, lightly distorted by rounding and
	// saturation. Loose bounds; this only guards against a broken
	// transform, not statistical purity.
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, genStddev*genStddev, variance, 0.5)
}

func TestGenerateInputEmpty(t *testing.T) {
	assert.Empty(t, GenerateInput(types.TestSeed, 0))
}
