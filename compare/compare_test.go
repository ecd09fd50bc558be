package compare

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/types"
)

func makeArtifact(role types.EnvironmentRole, n int) *types.ExecutionArtifact {
	a := &types.ExecutionArtifact{
		Environment:  role,
		Config:       "micro",
		Stations:     64,
		Frequencies:  3,
		TimeSamples:  256,
		MatrixLength: uint64(n),
		Records:      make([]types.Record, n),
	}
	for i := range a.Records {
		a.Records[i] = types.Record{
			Index: uint64(i),
			Real:  float64(i) * 1.5,
			Imag:  -float64(i) * 0.25,
		}
	}
	return a
}

func newTestComparator(t *testing.T, tolerance float64) *Comparator {
	t.Helper()
	c, err := NewComparator(log.New(), tolerance)
	require.NoError(t, err)
	return c
}

func TestNewComparatorValidation(t *testing.T) {
	_, err := NewComparator(nil, 0)
	require.Error(t, err)

	_, err = NewComparator(log.New(), -1e-9)
	require.Error(t, err)

	c := newTestComparator(t, 1e-6)
	assert.Equal(t, 1e-6, c.Tolerance())
}

func TestCompareIdentical(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictPass, result.Verdict)
	assert.Equal(t, types.ReasonNone, result.Reason)
	assert.Equal(t, uint64(100), result.TotalRecords)
	assert.Equal(t, uint64(100), result.EqualRecords)
	assert.Zero(t, result.DifferingRecords)
	assert.Zero(t, result.MaxDifference)
	assert.Empty(t, result.Samples)
}

func TestCompareSelfIdentity(t *testing.T) {
	// An artifact written to disk and read back must compare equal to
	// itself under zero tolerance.
	c := newTestComparator(t, 0)
	path := filepath.Join(t.TempDir(), "ref.txt")

	a := makeArtifact(types.RoleReference, 500)
	require.NoError(t, artifact.Write(path, a))

	result, err := c.CompareFiles("micro", path, path)
	require.NoError(t, err)
	assert.Equal(t, types.VerdictPass, result.Verdict)
	assert.Equal(t, uint64(500), result.EqualRecords)
}

func TestCompareValueMismatch(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	cand.Records[42].Real += 1e-7

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictFail, result.Verdict)
	assert.Equal(t, types.ReasonValueMismatch, result.Reason)
	assert.Equal(t, uint64(100), result.TotalRecords)
	assert.Equal(t, uint64(99), result.EqualRecords)
	assert.Equal(t, uint64(1), result.DifferingRecords)
	assert.InEpsilon(t, 1e-7, result.MaxDifference, 1e-6)

	require.Len(t, result.Samples, 1)
	assert.Equal(t, uint64(42), result.Samples[0].Index)
	assert.InEpsilon(t, 1e-7, result.Samples[0].RealDiff, 1e-6)
	assert.Zero(t, result.Samples[0].ImagDiff)
}

func TestCompareWithinTolerance(t *testing.T) {
	c := newTestComparator(t, 1e-6)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	cand.Records[42].Real += 1e-7

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictPass, result.Verdict, "a 1e-7 difference is inside a 1e-6 tolerance")
	assert.Equal(t, uint64(100), result.EqualRecords)
	assert.InEpsilon(t, 1e-7, result.MaxDifference, 1e-6,
		"max difference is tracked even for passing records")
}

func TestCompareCountInvariant(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 200)
	cand := makeArtifact(types.RoleCandidate, 200)
	for i := 0; i < 200; i += 3 {
		cand.Records[i].Imag += 0.5
	}

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, result.TotalRecords, result.EqualRecords+result.DifferingRecords)
}

func TestCompareIdempotent(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	cand.Records[7].Real = 999

	first := c.Compare("micro", ref, cand)
	second := c.Compare("micro", ref, cand)
	assert.Equal(t, first, second)
}

func TestCompareTruncatedArtifact(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	cand.Records = cand.Records[:60]

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictFail, result.Verdict)
	assert.Equal(t, types.ReasonLengthMismatch, result.Reason)
	assert.Contains(t, result.Detail, "100")
	assert.Contains(t, result.Detail, "60")
	assert.Zero(t, result.DifferingRecords, "no element comparison after a length mismatch")
}

func TestCompareShapeMismatch(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	cand.Stations = 128
	cand.MatrixLength = 200

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictFail, result.Verdict)
	assert.Equal(t, types.ReasonLengthMismatch, result.Reason)
	assert.Contains(t, result.Detail, "shapes differ")
}

func TestCompareIndexMismatch(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	cand.Records[10].Index = 99

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictFail, result.Verdict)
	assert.Equal(t, types.ReasonFormatError, result.Reason)
	assert.Contains(t, result.Detail, "index mismatch")
}

func TestCompareSamplesCapped(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 100)
	cand := makeArtifact(types.RoleCandidate, 100)
	for i := range cand.Records {
		cand.Records[i].Real += 1
	}

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, uint64(100), result.DifferingRecords)
	assert.Len(t, result.Samples, types.MaxDiffSamples)
}

func TestCompareFilesParseErrors(t *testing.T) {
	c := newTestComparator(t, 0)
	tmpDir := t.TempDir()

	refPath := filepath.Join(tmpDir, "ref.txt")
	require.NoError(t, artifact.Write(refPath, makeArtifact(types.RoleReference, 10)))

	_, err := c.CompareFiles("micro", refPath, filepath.Join(tmpDir, "missing.txt"))
	require.Error(t, err)
	assert.Equal(t, types.ReasonMissingArtifact, types.ReasonForError(err))
}

func TestCompareEmptyArtifacts(t *testing.T) {
	c := newTestComparator(t, 0)
	ref := makeArtifact(types.RoleReference, 0)
	cand := makeArtifact(types.RoleCandidate, 0)

	result := c.Compare("micro", ref, cand)
	assert.Equal(t, types.VerdictPass, result.Verdict, "zero records means nothing differs")
	assert.Zero(t, result.TotalRecords)
}
