// Package convert drives batch MD2/MD4 conversions: input discovery,
// per-file decode and write with failure isolation, and run reporting.
package convert

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cadi-tools/mdx-convert/internal/mdx"
)

// Writer renders one decoded ionogram to an output stream. Implementations
// must either write the full rendering or return an error; the dispatcher
// discards partial output on failure.
type Writer interface {
	Write(w io.Writer, ion *mdx.Ionogram) error
	Ext() string
}

// =============================================================================
// Text Writer
// =============================================================================

// TextWriter renders the full decoded record as line-oriented text: every
// header field, the frequency table, then per-block trace dumps.
type TextWriter struct{}

// Ext returns the output file extension.
func (TextWriter) Ext() string { return ".txt" }

func (TextWriter) Write(w io.Writer, ion *mdx.Ionogram) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Site: %s\n", ion.Site)
	fmt.Fprintf(bw, "Date/Time: %s\n", ion.ASCIIDatetime)
	fmt.Fprintf(bw, "Filetype: %c\n", ion.FileType)
	fmt.Fprintf(bw, "Number of Frequencies: %d\n", ion.NumFreqs)
	fmt.Fprintf(bw, "Number of Doppler Bins: %d\n", ion.NumDops)
	fmt.Fprintf(bw, "Minimum Height: %d\n", ion.MinHeight)
	fmt.Fprintf(bw, "Maximum Height: %d\n", ion.MaxHeight)
	fmt.Fprintf(bw, "Height Interval: %g\n", mdx.HeightStepKM)
	fmt.Fprintf(bw, "Pulses per Second: %d\n", ion.PPS)
	fmt.Fprintf(bw, "Number of Pulses Averaged: %d\n", ion.PulsesAveraged)
	fmt.Fprintf(bw, "Base Threshold (100): %d\n", ion.BaseThresh100)
	fmt.Fprintf(bw, "Noise Threshold (100): %d\n", ion.NoiseThresh100)
	fmt.Fprintf(bw, "Minimum Doppler for Save: %d\n", ion.MinDopForSave)
	fmt.Fprintf(bw, "Time Between Measurements (seconds): %d\n", ion.DTime)
	fmt.Fprintf(bw, "Gain Control: %c\n", ion.GainControl)
	fmt.Fprintf(bw, "Signal Processing: %c\n", ion.SigProcess)
	fmt.Fprintf(bw, "Number of Receivers: %d\n", ion.Receivers)

	fmt.Fprintln(bw, "Frequencies Used:")
	for _, f := range ion.Frequencies {
		fmt.Fprintf(bw, "%s\n", strconv.FormatFloat(f, 'g', -1, 64))
	}

	fmt.Fprintln(bw, "Raw Data:")
	for _, blk := range ion.Blocks {
		fmt.Fprintf(bw, "Time: %02d:%02d, Gain Flag: %d\n", blk.Minute, blk.Second, blk.GainFlag)
		for i, bin := range blk.Bins {
			fmt.Fprintf(bw, "Frequency: %g MHz, Noise Flag: %d, Noise Power (10x): %d\n",
				ion.FrequencyMHz(i), bin.NoiseFlag, bin.NoisePower)
			for _, s := range bin.Samples {
				if s.HasPower {
					fmt.Fprintf(bw, "  Height: %g km, Power: %g dB, Doppler Flag: %d\n",
						s.Height, s.Power, s.DopplerFlag)
				} else {
					fmt.Fprintf(bw, "  Height: %g km, Power: absent, Doppler Flag: %d\n",
						s.Height, s.DopplerFlag)
				}
			}
		}
	}

	return bw.Flush()
}

// =============================================================================
// CSV Writer
// =============================================================================

// CSVWriter projects the decoded record onto a feature set and renders one
// CSV row per projection unit, header row first. An empty feature set
// produces an empty file.
type CSVWriter struct {
	Features mdx.FeatureSet
}

// Ext returns the output file extension.
func (CSVWriter) Ext() string { return ".csv" }

func (w CSVWriter) Write(out io.Writer, ion *mdx.Ionogram) error {
	cw := csv.NewWriter(out)

	cols := w.Features.Columns()
	if len(cols) == 0 {
		cw.Flush()
		return cw.Error()
	}
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, row := range w.Features.Select(ion) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
