// Package memtier detects available system RAM and maps it onto the
// memory-tier capacity limits the RAPTOR store enforces.
//
// internal/preflight's estimateAvailableMemory is a heuristic stub that
// always reports 4GB; it is adequate for a pass/fail preflight check but
// not for sizing caches. This package reads the real figure on Linux
// (/proc/meminfo) and falls back to a conservative estimate elsewhere,
// since no third-party dependency in this module offers cross-platform
// memory detection.
package memtier

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Limits bounds how many chunks and tree nodes a Store may hold in
// memory before inserts are silently dropped.
type Limits struct {
	MaxChunks int
	MaxNodes  int
}

const (
	lowTierGB    = 4
	mediumTierGB = 8
)

var (
	lowTier    = Limits{MaxChunks: 10_000, MaxNodes: 1_000}
	mediumTier = Limits{MaxChunks: 25_000, MaxNodes: 2_500}
	highTier   = Limits{MaxChunks: 50_000, MaxNodes: 5_000}
)

// DetectLimits returns the capacity limits for the current machine's
// total RAM. A totalMemoryGB override of 0 triggers live detection.
func DetectLimits(totalMemoryGBOverride uint64) Limits {
	totalGB := totalMemoryGBOverride
	if totalGB == 0 {
		totalGB = totalMemoryGB()
	}

	switch {
	case totalGB < lowTierGB:
		return lowTier
	case totalGB < mediumTierGB:
		return mediumTier
	default:
		return highTier
	}
}

// totalMemoryGB returns total system RAM in gigabytes, or a conservative
// 4GB estimate if it cannot be determined on this platform.
func totalMemoryGB() uint64 {
	if runtime.GOOS == "linux" {
		if gb, ok := totalMemoryGBLinux(); ok {
			return gb
		}
	}
	return 4
}

// totalMemoryGBLinux parses MemTotal out of /proc/meminfo, which reports
// the value in kibibytes.
func totalMemoryGBLinux() (uint64, bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb / (1024 * 1024), true
	}
	return 0, false
}
