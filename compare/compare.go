// Package compare performs element-wise comparison of two correlator
// output artifacts.
package compare

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/log"

	"github.com/openxcorr/xcompat/artifact"
	"github.com/openxcorr/xcompat/types"
)

// Comparator compares two artifacts under a configurable tolerance.
// The pass criterion for cross-version testing is exact equality, so the
// default tolerance is zero; it is exposed rather than hard-coded
// because the surrounding tooling allows approximate comparison of
// artifacts from unrelated code paths.
type Comparator struct {
	log       log.Logger
	tolerance float64
}

// NewComparator creates a comparator. A negative tolerance is rejected.
func NewComparator(logger log.Logger, tolerance float64) (*Comparator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("tolerance cannot be negative, got %g", tolerance)
	}
	return &Comparator{log: logger, tolerance: tolerance}, nil
}

// Tolerance returns the configured tolerance.
func (c *Comparator) Tolerance() float64 {
	return c.tolerance
}

// CompareFiles parses both artifacts and compares them. Parse failures
// surface as types.FormatError or types.MissingArtifactError and fail
// the configuration.
func (c *Comparator) CompareFiles(configName, refPath, candPath string) (*types.ComparisonResult, error) {
	ref, err := artifact.Read(refPath)
	if err != nil {
		return nil, err
	}
	cand, err := artifact.Read(candPath)
	if err != nil {
		return nil, err
	}
	return c.Compare(configName, ref, cand), nil
}

// Compare performs the comparison policy:
//
//  1. differing record counts, declared matrix lengths or configuration
//     shapes short-circuit to Fail(LengthMismatch) without element
//     comparison;
//  2. otherwise every record is compared pairwise; a component pair is
//     equal when its absolute difference is within the tolerance;
//  3. the verdict is Pass iff every record is equal.
//
// Comparing the same pair twice yields an identical result.
func (c *Comparator) Compare(configName string, ref, cand *types.ExecutionArtifact) *types.ComparisonResult {
	result := &types.ComparisonResult{
		Config:    configName,
		Tolerance: c.tolerance,
	}

	if len(ref.Records) != len(cand.Records) {
		result.Verdict = types.VerdictFail
		result.Reason = types.ReasonLengthMismatch
		result.Detail = fmt.Sprintf("record counts differ: reference has %d, candidate has %d",
			len(ref.Records), len(cand.Records))
		result.TotalRecords = uint64(len(ref.Records))
		return result
	}
	if !ref.Comparable(cand) {
		result.Verdict = types.VerdictFail
		result.Reason = types.ReasonLengthMismatch
		result.Detail = fmt.Sprintf(
			"artifact shapes differ: reference %d (stations=%d freqs=%d samples=%d), candidate %d (stations=%d freqs=%d samples=%d)",
			ref.MatrixLength, ref.Stations, ref.Frequencies, ref.TimeSamples,
			cand.MatrixLength, cand.Stations, cand.Frequencies, cand.TimeSamples)
		result.TotalRecords = uint64(len(ref.Records))
		return result
	}

	result.TotalRecords = uint64(len(ref.Records))

	for i := range ref.Records {
		r := ref.Records[i]
		k := cand.Records[i]

		if r.Index != k.Index {
			result.Verdict = types.VerdictFail
			result.Reason = types.ReasonFormatError
			result.Detail = fmt.Sprintf("index mismatch at position %d: reference %d, candidate %d",
				i, r.Index, k.Index)
			return result
		}

		dr := math.Abs(r.Real - k.Real)
		di := math.Abs(r.Imag - k.Imag)

		if dr > result.MaxDifference {
			result.MaxDifference = dr
		}
		if di > result.MaxDifference {
			result.MaxDifference = di
		}

		if dr <= c.tolerance && di <= c.tolerance {
			result.EqualRecords++
			continue
		}

		result.DifferingRecords++
		if len(result.Samples) < types.MaxDiffSamples {
			result.Samples = append(result.Samples, types.DiffSample{
				Index:    r.Index,
				RefReal:  r.Real,
				RefImag:  r.Imag,
				CandReal: k.Real,
				CandImag: k.Imag,
				RealDiff: dr,
				ImagDiff: di,
			})
		}
	}

	if result.EqualRecords == result.TotalRecords {
		result.Verdict = types.VerdictPass
		c.log.Debug("Artifacts identical", "config", configName, "records", result.TotalRecords)
	} else {
		result.Verdict = types.VerdictFail
		result.Reason = types.ReasonValueMismatch
		result.Detail = fmt.Sprintf("%d of %d records differ, max difference %.3e",
			result.DifferingRecords, result.TotalRecords, result.MaxDifference)
	}
	return result
}
