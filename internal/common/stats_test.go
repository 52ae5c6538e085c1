package common

import (
	"strings"
	"testing"
)

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	s.FilesConverted.Add(3)
	s.FilesFailed.Add(1)
	s.Samples.Add(250)
	s.BytesRead.Add(2 * 1024 * 1024)

	if got := s.FilesConverted.Load(); got != 3 {
		t.Errorf("FilesConverted = %d; want 3", got)
	}
	if got := s.FilesFailed.Load(); got != 1 {
		t.Errorf("FilesFailed = %d; want 1", got)
	}
	if got := s.Samples.Load(); got != 250 {
		t.Errorf("Samples = %d; want 250", got)
	}
}

func TestStatsSummary(t *testing.T) {
	s := NewStats()
	s.FilesConverted.Add(7)
	s.FilesFailed.Add(2)
	s.Samples.Add(1234)
	s.BytesRead.Add(1024 * 1024)

	lines := strings.Join(s.Summary(), "\n")
	for _, want := range []string{
		"Files Converted: 7",
		"Files Failed:    2",
		"Total Samples:   1234",
		"Total Read:      1.00 MiB",
	} {
		if !strings.Contains(lines, want) {
			t.Errorf("Summary missing %q in:\n%s", want, lines)
		}
	}
}

func TestStatsReporterStartStop(t *testing.T) {
	s := NewStats()
	s.SetSilent(true)
	s.StartReporter()
	s.StartReporter() // second start is a no-op
	s.StopReporter()
	s.StopReporter() // second stop must not close twice
}
