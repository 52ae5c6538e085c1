package mdx

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cadi-tools/mdx-convert/internal/testutils"
)

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		want      FeatureSet
		wantErr   bool
	}{
		{"full set", "dtfhm", DefaultFeatures, false},
		{"empty set", "", FeatureSet{}, false},
		{"subset", "dh", FeatureSet{Date: true, Height: true}, false},
		{"duplicates are idempotent", "ddtt", FeatureSet{Date: true, Time: true}, false},
		{"order is irrelevant", "mhftd", DefaultFeatures, false},
		{"unknown flag", "dx", FeatureSet{}, true},
		{"unknown flag alone", "z", FeatureSet{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := ParseFeatures(tt.shorthand)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFeatureFlag) {
					t.Fatalf("ParseFeatures(%q) = %v; want ErrUnknownFeatureFlag", tt.shorthand, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFeatures(%q) = %v", tt.shorthand, err)
			}
			if fs != tt.want {
				t.Errorf("ParseFeatures(%q) = %+v; want %+v", tt.shorthand, fs, tt.want)
			}
		})
	}
}

func TestParseFeaturesNamesOffendingFlag(t *testing.T) {
	_, err := ParseFeatures("dx")
	if err == nil || !strings.Contains(err.Error(), `"x"`) {
		t.Fatalf("ParseFeatures(\"dx\") = %v; want error naming \"x\"", err)
	}
}

func TestFeatureColumnsCanonicalOrder(t *testing.T) {
	// Shorthand order never changes column order.
	a, err := ParseFeatures("mdft")
	if err != nil {
		t.Fatalf("ParseFeatures(mdft) = %v", err)
	}
	b, err := ParseFeatures("dtfm")
	if err != nil {
		t.Fatalf("ParseFeatures(dtfm) = %v", err)
	}

	want := []string{"date", "time", "frequency", "mean_power"}
	if got := a.Columns(); !reflect.DeepEqual(got, want) {
		t.Errorf("Columns(mdft) = %v; want %v", got, want)
	}
	if got := b.Columns(); !reflect.DeepEqual(got, want) {
		t.Errorf("Columns(dtfm) = %v; want %v", got, want)
	}
}

func TestSelectPerSample(t *testing.T) {
	ion, err := Decode(testutils.NewRecord().Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	rows := DefaultFeatures.Select(ion)
	if len(rows) != ion.SampleCount() {
		t.Fatalf("Select() = %d rows; want %d", len(rows), ion.SampleCount())
	}
	row := rows[0]
	if len(row) != 5 {
		t.Fatalf("row width = %d; want 5", len(row))
	}
	if row[0] != "15/01/2020" || row[1] != "12:00:00" {
		t.Errorf("date/time cells = %q/%q", row[0], row[1])
	}
	if row[2] != "1" {
		t.Errorf("frequency cell = %q; want 1 (MHz)", row[2])
	}
	if row[3] != "90" {
		t.Errorf("height cell = %q; want 90", row[3])
	}
	if row[4] == "" {
		t.Error("mean power cell empty for a detected return")
	}
}

func TestSelectAbsentPowerCell(t *testing.T) {
	rec := testutils.NewRecord()
	rec.Blocks[0].Bins[0].Groups[0].Samples[0].IQ = [][2]byte{{0, 0}, {0, 0}, {0, 0}, {0, 0}}
	ion, err := Decode(rec.Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	rows := DefaultFeatures.Select(ion)
	if rows[0][4] != "" {
		t.Errorf("absent return power cell = %q; want empty", rows[0][4])
	}
}

func TestSelectDateTimeOnly(t *testing.T) {
	ion, err := Decode(testutils.NewRecord().Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	fs := FeatureSet{Date: true, Time: true}
	rows := fs.Select(ion)
	if len(rows) != 1 {
		t.Fatalf("date/time-only Select() = %d rows; want 1", len(rows))
	}
	if want := []string{"15/01/2020", "12:00:00"}; !reflect.DeepEqual(rows[0], want) {
		t.Errorf("row = %v; want %v", rows[0], want)
	}
}

func TestSelectEmptySet(t *testing.T) {
	ion, err := Decode(testutils.NewRecord().Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	var fs FeatureSet
	if rows := fs.Select(ion); rows != nil {
		t.Errorf("empty set Select() = %v; want nil", rows)
	}
	if cols := fs.Columns(); len(cols) != 0 {
		t.Errorf("empty set Columns() = %v; want none", cols)
	}
}
