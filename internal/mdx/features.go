package mdx

import (
	"fmt"
	"strconv"
)

// FeatureAlphabet lists the legal shorthand characters, in canonical column
// order: date, time, frequency, height, mean power.
const FeatureAlphabet = "dtfhm"

// FeatureSet selects which columns a projection emits. The emitted column
// order is always the canonical date, time, frequency, height, mean_power
// order, independent of the order characters appeared in the shorthand.
type FeatureSet struct {
	Date      bool
	Time      bool
	Frequency bool
	Height    bool
	MeanPower bool
}

// DefaultFeatures selects every feature, matching the documented default
// shorthand "dtfhm".
var DefaultFeatures = FeatureSet{
	Date:      true,
	Time:      true,
	Frequency: true,
	Height:    true,
	MeanPower: true,
}

// ParseFeatures parses a shorthand string over FeatureAlphabet. Duplicate
// characters are idempotent; an empty string is legal and selects nothing.
// An unknown character fails with ErrUnknownFeatureFlag naming the offender.
func ParseFeatures(shorthand string) (FeatureSet, error) {
	var fs FeatureSet
	for _, c := range shorthand {
		switch c {
		case 'd':
			fs.Date = true
		case 't':
			fs.Time = true
		case 'f':
			fs.Frequency = true
		case 'h':
			fs.Height = true
		case 'm':
			fs.MeanPower = true
		default:
			return FeatureSet{}, fmt.Errorf("%w: %q (alphabet is %q)",
				ErrUnknownFeatureFlag, string(c), FeatureAlphabet)
		}
	}
	return fs, nil
}

// Empty reports whether no feature is selected.
func (fs FeatureSet) Empty() bool {
	return fs == FeatureSet{}
}

// PerSample reports whether the projection expands to one row per decoded
// sample. Date/time-only selections collapse to a single row per file.
func (fs FeatureSet) PerSample() bool {
	return fs.Frequency || fs.Height || fs.MeanPower
}

// Columns returns the selected header names in canonical order.
func (fs FeatureSet) Columns() []string {
	cols := make([]string, 0, 5)
	if fs.Date {
		cols = append(cols, "date")
	}
	if fs.Time {
		cols = append(cols, "time")
	}
	if fs.Frequency {
		cols = append(cols, "frequency")
	}
	if fs.Height {
		cols = append(cols, "height")
	}
	if fs.MeanPower {
		cols = append(cols, "mean_power")
	}
	return cols
}

// Select projects the ionogram onto the selected features, one string row
// per output unit in canonical column order. Per-sample selections yield one
// row per (frequency, sample) pair; date/time-only selections yield exactly
// one row; an empty set yields no rows.
func (fs FeatureSet) Select(ion *Ionogram) [][]string {
	if fs.Empty() {
		return nil
	}

	date := ion.DateString()
	clock := ion.TimeString()

	if !fs.PerSample() {
		row := make([]string, 0, 2)
		if fs.Date {
			row = append(row, date)
		}
		if fs.Time {
			row = append(row, clock)
		}
		return [][]string{row}
	}

	rows := make([][]string, 0, ion.SampleCount())
	for _, blk := range ion.Blocks {
		for i, bin := range blk.Bins {
			for _, s := range bin.Samples {
				row := make([]string, 0, 5)
				if fs.Date {
					row = append(row, date)
				}
				if fs.Time {
					row = append(row, clock)
				}
				if fs.Frequency {
					row = append(row, formatFloat(ion.FrequencyMHz(i)))
				}
				if fs.Height {
					row = append(row, formatFloat(s.Height))
				}
				if fs.MeanPower {
					if s.HasPower {
						row = append(row, formatFloat(s.Power))
					} else {
						row = append(row, "")
					}
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
