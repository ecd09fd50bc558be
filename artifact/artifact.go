// Package artifact persists and parses correlator output artifacts.
//
// The file format is plain text: header lines prefixed with '#', each a
// "Key: value" pair, followed by one data line per record:
//
//	<index> <real> <imag>
//
// with the numeric parts in scientific notation at 15 significant
// digits, which is lossless at the workload's working precision.
package artifact

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openxcorr/xcompat/types"
)

const (
	headerPrefix = "#"
	timeLayout   = time.RFC3339
)

// header keys; "Matrix Length" and "Execution Time" are the minimum a
// parseable artifact must carry.
const (
	keyEnvironment   = "Environment"
	keyConfiguration = "Configuration"
	keyRuntime       = "Runtime Version"
	keyGenerated     = "Generated"
	keyStations      = "Stations"
	keyFrequencies   = "Frequencies"
	keyTimeSamples   = "Time Samples"
	keyMatrixLength  = "Matrix Length"
	keySeed          = "Test Seed"
	keyExecTime      = "Execution Time"
	keyDataFormat    = "Data Format"
)

// Write serializes the artifact to path, overwriting any prior file.
func Write(path string, a *types.ExecutionArtifact) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "%s Correlator Cross-Version Test Results\n", headerPrefix)
	fmt.Fprintf(w, "%s %s: %s\n", headerPrefix, keyGenerated, a.Generated.Format(timeLayout))
	fmt.Fprintf(w, "%s %s: %s\n", headerPrefix, keyEnvironment, a.Environment)
	fmt.Fprintf(w, "%s %s: %s\n", headerPrefix, keyConfiguration, a.Config)
	fmt.Fprintf(w, "%s %s: %s\n", headerPrefix, keyRuntime, a.RuntimeVersion)
	fmt.Fprintf(w, "%s %s: %d\n", headerPrefix, keyStations, a.Stations)
	fmt.Fprintf(w, "%s %s: %d\n", headerPrefix, keyFrequencies, a.Frequencies)
	fmt.Fprintf(w, "%s %s: %d\n", headerPrefix, keyTimeSamples, a.TimeSamples)
	fmt.Fprintf(w, "%s %s: %d\n", headerPrefix, keyMatrixLength, a.MatrixLength)
	fmt.Fprintf(w, "%s %s: %d\n", headerPrefix, keySeed, a.Seed)
	fmt.Fprintf(w, "%s %s: %.6f seconds\n", headerPrefix, keyExecTime, a.ExecTime)
	fmt.Fprintf(w, "%s %s: index real_part imag_part\n", headerPrefix, keyDataFormat)

	for _, r := range a.Records {
		fmt.Fprintf(w, "%d %.15e %.15e\n", r.Index, r.Real, r.Imag)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Read parses an artifact from path. A missing file yields
// types.MissingArtifactError; a malformed line yields types.FormatError.
func Read(path string) (*types.ExecutionArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.MissingArtifactError{Path: path}
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	a := &types.ExecutionArtifact{}
	scanner := bufio.NewScanner(f)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, headerPrefix) {
			if err := parseHeader(a, line); err != nil {
				return nil, &types.FormatError{Path: path, Line: lineNo, Err: err}
			}
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, &types.FormatError{Path: path, Line: lineNo, Err: err}
		}
		a.Records = append(a.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return a, nil
}

func parseHeader(a *types.ExecutionArtifact, line string) error {
	body := strings.TrimSpace(strings.TrimPrefix(line, headerPrefix))
	key, value, found := strings.Cut(body, ":")
	if !found {
		// Free-form banner line, carries no metadata.
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	var err error
	switch key {
	case keyEnvironment:
		a.Environment = types.EnvironmentRole(value)
	case keyConfiguration:
		a.Config = value
	case keyRuntime:
		a.RuntimeVersion = value
	case keyGenerated:
		// Tolerated when unparsable: an artifact from another producer
		// may use a different timestamp format.
		if ts, tsErr := time.Parse(timeLayout, value); tsErr == nil {
			a.Generated = ts
		}
	case keyStations:
		a.Stations, err = strconv.Atoi(value)
	case keyFrequencies:
		a.Frequencies, err = strconv.Atoi(value)
	case keyTimeSamples:
		a.TimeSamples, err = strconv.Atoi(value)
	case keyMatrixLength:
		a.MatrixLength, err = strconv.ParseUint(value, 10, 64)
	case keySeed:
		a.Seed, err = strconv.Atoi(value)
	case keyExecTime:
		value = strings.TrimSuffix(value, " seconds")
		a.ExecTime, err = strconv.ParseFloat(value, 64)
	}
	if err != nil {
		return fmt.Errorf("invalid %s header value %q: %w", key, value, err)
	}
	return nil
}

func parseRecord(line string) (types.Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return types.Record{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	index, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return types.Record{}, fmt.Errorf("invalid index %q: %w", fields[0], err)
	}
	real, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return types.Record{}, fmt.Errorf("invalid real part %q: %w", fields[1], err)
	}
	imag, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return types.Record{}, fmt.Errorf("invalid imaginary part %q: %w", fields[2], err)
	}

	return types.Record{Index: index, Real: real, Imag: imag}, nil
}
