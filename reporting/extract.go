package reporting

import (
	"regexp"
	"strconv"
)

// The workload's memory monitor prints a report block into its log:
//
//	Peak System Memory: 1234.5 MB
//	Peak GPU Memory: 2345.6 MB
//
// Both lines must be present for the stats to count; a partial block is
// treated as absent rather than filled with zeros.
var (
	peakSystemRe = regexp.MustCompile(`(?m)^\s*Peak System Memory:\s+([0-9]+(?:\.[0-9]+)?)\s*MB\s*$`)
	peakGPURe    = regexp.MustCompile(`(?m)^\s*Peak GPU Memory:\s+([0-9]+(?:\.[0-9]+)?)\s*MB\s*$`)
)

// ExtractMemoryStats parses the memory report block out of one
// environment's execution log. It returns nil when the log carries no
// complete block.
func ExtractMemoryStats(execLog string) *MemoryStats {
	sys := peakSystemRe.FindStringSubmatch(execLog)
	gpu := peakGPURe.FindStringSubmatch(execLog)
	if sys == nil || gpu == nil {
		return nil
	}

	sysMB, err := strconv.ParseFloat(sys[1], 64)
	if err != nil {
		return nil
	}
	gpuMB, err := strconv.ParseFloat(gpu[1], 64)
	if err != nil {
		return nil
	}

	return &MemoryStats{PeakSystemMB: sysMB, PeakGPUMB: gpuMB}
}
