package common

import (
	"fmt"
	"runtime"
	"time"
)

// MemoryStats is a snapshot of the runtime heap.
type MemoryStats struct {
	Alloc         uint64
	TotalAlloc    uint64
	Sys           uint64
	Mallocs       uint64
	NumGC         uint32
	GCCPUFraction float64
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		Mallocs:       m.Mallocs,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.Alloc/1024,
		m.TotalAlloc/1024,
		m.Sys/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// RunStats collects durations of repeated operations such as decoding a
// batch of frames.
type RunStats struct {
	Name         string
	Durations    []time.Duration
	Failures     int
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
}

// NewRunStats starts collecting statistics and snapshots memory.
func NewRunStats(name string) *RunStats {
	return &RunStats{Name: name, MemoryBefore: GetMemoryStats()}
}

// Add records one successful operation.
func (s *RunStats) Add(d time.Duration) {
	s.Durations = append(s.Durations, d)
}

// Fail records one failed operation.
func (s *RunStats) Fail() {
	s.Failures++
}

// Finish snapshots memory after the run.
func (s *RunStats) Finish() {
	s.MemoryAfter = GetMemoryStats()
}

// Count returns the number of successful operations.
func (s *RunStats) Count() int {
	return len(s.Durations)
}

// Total returns the sum of all recorded durations.
func (s *RunStats) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Durations {
		total += d
	}
	return total
}

// Average returns the mean duration, or zero when nothing was recorded.
func (s *RunStats) Average() time.Duration {
	if len(s.Durations) == 0 {
		return 0
	}
	return s.Total() / time.Duration(len(s.Durations))
}

// MinMax returns the fastest and slowest recorded durations.
func (s *RunStats) MinMax() (time.Duration, time.Duration) {
	if len(s.Durations) == 0 {
		return 0, 0
	}
	lo, hi := s.Durations[0], s.Durations[0]
	for _, d := range s.Durations[1:] {
		lo = min(lo, d)
		hi = max(hi, d)
	}
	return lo, hi
}

// String returns a one-line summary of the run.
func (s *RunStats) String() string {
	lo, hi := s.MinMax()
	var memDiff int64
	if s.MemoryAfter.TotalAlloc >= s.MemoryBefore.TotalAlloc {
		memDiff = int64(s.MemoryAfter.TotalAlloc-s.MemoryBefore.TotalAlloc) / 1024 //nolint:gosec // G115: display only
	}
	return fmt.Sprintf("%s: %d ok, %d failed, avg: %v, min: %v, max: %v, total: %v, alloc: +%d KB",
		s.Name, s.Count(), s.Failures, s.Average(), lo, hi, s.Total(), memDiff)
}
