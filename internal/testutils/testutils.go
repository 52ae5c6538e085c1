// Package testutils builds synthetic MD2/MD4 byte buffers for tests.
package testutils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
)

// SampleSpec is one dop-bin sample: a Doppler flag plus one I/Q byte pair
// per receiver.
type SampleSpec struct {
	DopFlag byte
	IQ      [][2]byte
}

// GroupSpec is one height-bin group. Extended sets bit 7 of the count byte,
// which shifts the height bin by 200.
type GroupSpec struct {
	HBin     byte
	Extended bool
	Samples  []SampleSpec
}

// BinSpec is one frequency's readings within a time block.
type BinSpec struct {
	NoiseFlag  byte
	NoisePower uint16
	Groups     []GroupSpec
}

// BlockSpec is one minute/second time block. Bins must have exactly one
// entry per frequency in the record.
type BlockSpec struct {
	Minute, Second, Gain byte
	Bins                 []BinSpec
}

// Record assembles a synthetic MD2/MD4 record.
type Record struct {
	Site        string
	Timestamp   time.Time
	FileType    byte
	NumDops     uint8
	MinHeight   uint16
	MaxHeight   uint16
	PPS         uint8
	Receivers   uint8
	Frequencies []float32
	Blocks      []BlockSpec

	// DatetimeOverride replaces the formatted 22-char timestamp field when
	// non-empty, for corrupt-header tests.
	DatetimeOverride string
	// FreqCountOverride replaces the header frequency count when non-zero.
	FreqCountOverride uint16
}

// NewRecord returns a well-formed single-block record with three ascending
// frequencies and one sample, suitable as a baseline for most tests.
func NewRecord() *Record {
	return &Record{
		Site:        "ABC",
		Timestamp:   time.Date(2020, time.January, 15, 12, 0, 0, 0, time.UTC),
		FileType:    'I',
		NumDops:     1,
		MinHeight:   90,
		MaxHeight:   510,
		PPS:         60,
		Receivers:   4,
		Frequencies: []float32{1e6, 2e6, 3e6},
		Blocks: []BlockSpec{
			{
				Minute: 0, Second: 30, Gain: 5,
				Bins: []BinSpec{
					{NoiseFlag: 1, NoisePower: 120, Groups: []GroupSpec{
						{HBin: 30, Samples: []SampleSpec{
							{DopFlag: 2, IQ: [][2]byte{{10, 20}, {30, 40}, {50, 60}, {70, 80}}},
						}},
					}},
					{NoiseFlag: 1, NoisePower: 110},
					{NoiseFlag: 2, NoisePower: 100},
				},
			},
		},
	}
}

// DatetimeField renders the 22-char header timestamp field.
func (r *Record) DatetimeField() string {
	if r.DatetimeOverride != "" {
		return r.DatetimeOverride
	}
	t := r.Timestamp
	return fmt.Sprintf(" %s %2d %02d:%02d:%02d %4d ",
		t.Format("Jan"), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Year())
}

// Bytes assembles the record into its binary form.
func (r *Record) Bytes() []byte {
	var buf bytes.Buffer

	site := make([]byte, 3)
	copy(site, r.Site)
	buf.Write(site)
	buf.WriteString(r.DatetimeField())
	buf.WriteByte(r.FileType)

	nfreqs := uint16(len(r.Frequencies))
	if r.FreqCountOverride != 0 {
		nfreqs = r.FreqCountOverride
	}
	writeU16(&buf, nfreqs)
	buf.WriteByte(r.NumDops)
	writeU16(&buf, r.MinHeight)
	writeU16(&buf, r.MaxHeight)
	buf.WriteByte(r.PPS)
	buf.WriteByte(4)        // pulses averaged
	writeU16(&buf, 4000)    // base threshold x100
	writeU16(&buf, 300)     // noise threshold x100
	buf.WriteByte(1)        // min doppler for save
	writeU16(&buf, 300)     // seconds between soundings
	buf.WriteByte('A')      // gain control
	buf.WriteByte('S')      // signal processing
	buf.WriteByte(r.Receivers)
	buf.Write(make([]byte, 11)) // spares

	for _, f := range r.Frequencies {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
		buf.Write(b[:])
	}

	for _, blk := range r.Blocks {
		buf.WriteByte(blk.Minute)
		buf.WriteByte(blk.Second)
		buf.WriteByte(blk.Gain)
		for _, bin := range blk.Bins {
			buf.WriteByte(bin.NoiseFlag)
			writeU16(&buf, bin.NoisePower)
			for _, g := range bin.Groups {
				buf.WriteByte(g.HBin)
				count := byte(len(g.Samples))
				if g.Extended {
					count |= 0x80
				}
				buf.WriteByte(count)
				for _, s := range g.Samples {
					buf.WriteByte(s.DopFlag)
					for _, iq := range s.IQ {
						buf.WriteByte(iq[0])
						buf.WriteByte(iq[1])
					}
				}
			}
			buf.WriteByte(0xFF) // frequency terminator
		}
	}
	buf.WriteByte(0xFF) // body end marker

	return buf.Bytes()
}

// Gzip compresses a record buffer the way archived station files are stored.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
