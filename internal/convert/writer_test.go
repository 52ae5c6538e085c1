package convert

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/cadi-tools/mdx-convert/internal/mdx"
	"github.com/cadi-tools/mdx-convert/internal/testutils"
)

func decodeBaseline(t *testing.T) *mdx.Ionogram {
	t.Helper()
	ion, err := mdx.Decode(testutils.NewRecord().Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}
	return ion
}

func TestTextWriterHeaderFields(t *testing.T) {
	rec := testutils.NewRecord()
	ion, err := mdx.Decode(rec.Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	var buf bytes.Buffer
	if err := (TextWriter{}).Write(&buf, ion); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	out := buf.String()

	// Header fields must survive decode and rendering byte-exact.
	for _, want := range []string{
		"Site: ABC\n",
		"Date/Time: " + rec.DatetimeField() + "\n",
		"Filetype: I\n",
		"Number of Frequencies: 3\n",
		"Number of Doppler Bins: 1\n",
		"Minimum Height: 90\n",
		"Maximum Height: 510\n",
		"Height Interval: 3\n",
		"Number of Receivers: 4\n",
		"Frequencies Used:\n",
		"Raw Data:\n",
		"Time: 00:30, Gain Flag: 5\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}

	// The frequency table renders in Hz, one per line.
	for _, want := range []string{"\n1e+06\n", "\n2e+06\n", "\n3e+06\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing frequency line %q", want)
		}
	}

	if !strings.Contains(out, "Height: 90 km") {
		t.Error("text output missing sample height")
	}
}

func TestTextWriterAbsentPower(t *testing.T) {
	rec := testutils.NewRecord()
	rec.Blocks[0].Bins[0].Groups[0].Samples[0].IQ = [][2]byte{{0, 0}, {0, 0}, {0, 0}, {0, 0}}
	ion, err := mdx.Decode(rec.Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	var buf bytes.Buffer
	if err := (TextWriter{}).Write(&buf, ion); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if !strings.Contains(buf.String(), "Power: absent") {
		t.Error("text output does not mark an absent return")
	}
}

func TestCSVWriterFullFeatureSet(t *testing.T) {
	ion := decodeBaseline(t)

	var buf bytes.Buffer
	w := CSVWriter{Features: mdx.DefaultFeatures}
	if err := w.Write(&buf, ion); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading emitted CSV: %v", err)
	}
	if len(records) != 1+ion.SampleCount() {
		t.Fatalf("CSV has %d records; want header + %d rows", len(records), ion.SampleCount())
	}

	wantHeader := []string{"date", "time", "frequency", "height", "mean_power"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q; want %q", i, records[0][i], col)
		}
	}
	if records[1][0] != "15/01/2020" || records[1][1] != "12:00:00" {
		t.Errorf("row cells = %v", records[1])
	}
}

func TestCSVWriterCanonicalOrderAcrossShorthands(t *testing.T) {
	ion := decodeBaseline(t)

	render := func(shorthand string) string {
		fs, err := mdx.ParseFeatures(shorthand)
		if err != nil {
			t.Fatalf("ParseFeatures(%q) = %v", shorthand, err)
		}
		var buf bytes.Buffer
		if err := (CSVWriter{Features: fs}).Write(&buf, ion); err != nil {
			t.Fatalf("Write() = %v", err)
		}
		return buf.String()
	}

	if a, b := render("mdft"), render("tfdm"); a != b {
		t.Errorf("shorthand order changed output:\n%q\nvs\n%q", a, b)
	}
}

func TestCSVWriterEmptyFeatureSet(t *testing.T) {
	ion := decodeBaseline(t)

	var buf bytes.Buffer
	if err := (CSVWriter{}).Write(&buf, ion); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty feature set produced %q; want no output", buf.String())
	}
}
