package common

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats tracks conversion run metrics with atomic counters, safe for use
// from parallel file workers.
type Stats struct {
	FilesConverted atomic.Uint64
	FilesFailed    atomic.Uint64
	Samples        atomic.Uint64
	BytesRead      atomic.Uint64
	StartTime      time.Time

	// Internal state for the progress reporter
	running atomic.Bool
	stopCh  chan struct{}
	silent  bool
}

// NewStats creates a new Stats instance with the run clock started.
func NewStats() *Stats {
	return &Stats{
		StartTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// SetSilent enables or disables silent mode.
func (s *Stats) SetSilent(silent bool) {
	s.silent = silent
}

// StartReporter starts a background goroutine that prints progress every
// two seconds. Intended for the bulk exporters; the sequential converters
// log per file instead.
func (s *Stats) StartReporter() {
	if s.running.Load() {
		return
	}
	s.running.Store(true)
	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine.
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Stats) printStatus() {
	if s.silent {
		return
	}
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	converted := s.FilesConverted.Load()
	failed := s.FilesFailed.Load()
	samples := s.Samples.Load()
	mib := float64(s.BytesRead.Load()) / (1024 * 1024)

	fmt.Printf("[Progress] Files: %d ok / %d failed | Samples: %d | Read: %.2f MiB | %.1f files/s\n",
		converted, failed, samples, mib, float64(converted+failed)/elapsed)
}

// Summary renders the end-of-run totals as log-ready lines.
func (s *Stats) Summary() []string {
	elapsed := time.Since(s.StartTime)
	return []string{
		fmt.Sprintf("Files Converted: %d", s.FilesConverted.Load()),
		fmt.Sprintf("Files Failed:    %d", s.FilesFailed.Load()),
		fmt.Sprintf("Total Samples:   %d", s.Samples.Load()),
		fmt.Sprintf("Total Read:      %.2f MiB", float64(s.BytesRead.Load())/(1024*1024)),
		fmt.Sprintf("Elapsed:         %v", elapsed.Round(time.Millisecond)),
	}
}
