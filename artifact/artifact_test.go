package artifact

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxcorr/xcompat/types"
)

func sampleArtifact() *types.ExecutionArtifact {
	return &types.ExecutionArtifact{
		Environment:    types.RoleReference,
		Config:         "micro",
		Stations:       64,
		Frequencies:    3,
		TimeSamples:    256,
		MatrixLength:   3,
		RuntimeVersion: "11.8.0",
		Seed:           types.TestSeed,
		ExecTime:       1.234567,
		Generated:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Records: []types.Record{
			{Index: 0, Real: 1.234567890123456e+03, Imag: -9.876543210987654e-01},
			{Index: 1, Real: 0, Imag: 0},
			{Index: 2, Real: -2.5e-15, Imag: 7},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	orig := sampleArtifact()

	require.NoError(t, Write(path, orig))

	got, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, orig.Environment, got.Environment)
	assert.Equal(t, orig.Config, got.Config)
	assert.Equal(t, orig.Stations, got.Stations)
	assert.Equal(t, orig.Frequencies, got.Frequencies)
	assert.Equal(t, orig.TimeSamples, got.TimeSamples)
	assert.Equal(t, orig.MatrixLength, got.MatrixLength)
	assert.Equal(t, orig.RuntimeVersion, got.RuntimeVersion)
	assert.Equal(t, orig.Seed, got.Seed)
	assert.InDelta(t, orig.ExecTime, got.ExecTime, 1e-6)
	assert.True(t, orig.Generated.Equal(got.Generated))
	require.Equal(t, orig.Records, got.Records,
		"15 significant digits must round-trip float64 values exactly at working precision")
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")
	_, err := Read(path)
	require.Error(t, err)

	var missingErr *types.MissingArtifactError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, path, missingErr.Path)
	assert.Equal(t, types.ReasonMissingArtifact, types.ReasonForError(err))
}

func TestReadMalformedRecord(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLine int
	}{
		{
			name:     "too few fields",
			content:  "# Matrix Length: 2\n0 1.0 2.0\n1 3.0\n",
			wantLine: 3,
		},
		{
			name:     "bad index",
			content:  "x 1.0 2.0\n",
			wantLine: 1,
		},
		{
			name:     "bad real part",
			content:  "0 banana 2.0\n",
			wantLine: 1,
		},
		{
			name:     "bad header value",
			content:  "# Matrix Length: lots\n",
			wantLine: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Read(path)
			require.Error(t, err)

			var formatErr *types.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, tt.wantLine, formatErr.Line)
			assert.Equal(t, path, formatErr.Path)
		})
	}
}

func TestReadTolerantHeaders(t *testing.T) {
	content := "# Correlator Cross-Version Test Results\n" +
		"# Generated: yesterday sometime\n" +
		"# Some Unknown Key: whatever\n" +
		"# Matrix Length: 1\n" +
		"# Execution Time: 2.500000 seconds\n" +
		"0 1.000000000000000e+00 0.000000000000000e+00\n"
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	a, err := Read(path)
	require.NoError(t, err)
	assert.True(t, a.Generated.IsZero(), "unparsable timestamp is tolerated, not fatal")
	assert.Equal(t, uint64(1), a.MatrixLength)
	assert.InDelta(t, 2.5, a.ExecTime, 1e-9)
	require.Len(t, a.Records, 1)
}

func TestReadSkipsBlankLines(t *testing.T) {
	content := "# Matrix Length: 2\n\n0 1.0 2.0\n\n1 3.0 4.0\n\n"
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	a, err := Read(path)
	require.NoError(t, err)
	require.Len(t, a.Records, 2)
}

func TestRoundTripExtremeValues(t *testing.T) {
	orig := sampleArtifact()
	orig.Records = []types.Record{
		{Index: 0, Real: math.MaxFloat64 / 1e10, Imag: math.SmallestNonzeroFloat64 * 1e10},
		{Index: 1, Real: -1.797e+100, Imag: 4.9e-100},
	}
	path := filepath.Join(t.TempDir(), "results.txt")

	require.NoError(t, Write(path, orig))
	got, err := Read(path)
	require.NoError(t, err)

	for i := range orig.Records {
		assert.InEpsilon(t, orig.Records[i].Real, got.Records[i].Real, 1e-14)
	}
}
