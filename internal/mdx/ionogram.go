// Package mdx decodes CADI MD2/MD4 ionosonde sounding files.
//
// An MD2/MD4 file holds one swept-frequency sounding: a 56-byte fixed header,
// a table of sounded frequencies, and a body of minute/second time blocks
// carrying height-binned receiver samples per frequency. All integers are
// little-endian. The decoder tolerates malformed input by failing with a
// classified error, never by panicking, which keeps batch conversions alive
// across corrupt files.
package mdx

import (
	"fmt"
	"time"
)

// =============================================================================
// Format Constants
// =============================================================================

const (
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 56

	// HeightStepKM is the virtual height per height bin. The step is not
	// stored in the file; 3 km comes from the CADI format documentation.
	HeightStepKM = 3.0

	// BodyEndMarker terminates the time-block sequence.
	BodyEndMarker = 0xFF

	// binTerminator ends a frequency's height-bin groups: any flag byte at
	// or above this value belongs to the enclosing structure.
	binTerminator = 224

	// hbinExtension is added to a height bin when the sample count byte has
	// its top bit set, extending the addressable height range.
	hbinExtension = 200
)

// File type discriminators. The byte at offset 25 distinguishes the two
// known record layouts; anything else is rejected as unsupported.
const (
	FileTypeIonogram = 'I' // swept-frequency ionogram
	FileTypeDrift    = 'F' // fixed-frequency drift sounding
)

// Sanity ceilings for header-declared counts. Corrupted headers can claim
// absurd counts; these bounds stop pathological over-allocation before any
// body bytes are read.
const (
	MaxFrequencies = 8192
	MaxReceivers   = 16
)

// =============================================================================
// Decoded Record Model
// =============================================================================

// Header holds the fixed 56-byte record header. Field names follow the CADI
// documentation; threshold fields are stored scaled by 100 as in the file.
type Header struct {
	Site           string    // station identifier, 3 chars
	ASCIIDatetime  string    // raw 22-char timestamp field, kept verbatim
	FileType       byte      // FileTypeIonogram or FileTypeDrift
	NumFreqs       uint16    // frequency table length
	NumDops        uint8     // Doppler bins per height
	MinHeight      uint16    // km
	MaxHeight      uint16    // km
	PPS            uint8     // pulses per second
	PulsesAveraged uint8
	BaseThresh100  uint16
	NoiseThresh100 uint16
	MinDopForSave  uint8
	DTime          uint16 // seconds between soundings
	GainControl    byte
	SigProcess     byte
	Receivers      uint8  // 2 for MD2 hardware, 4 for MD4
	Spares         string // 11 opaque bytes
	Timestamp      time.Time
}

// DateString renders the sounding date as d/mm/yyyy.
func (h *Header) DateString() string {
	return fmt.Sprintf("%d/%02d/%d", h.Timestamp.Day(), int(h.Timestamp.Month()), h.Timestamp.Year())
}

// TimeString renders the sounding time as hh:mm:ss.
func (h *Header) TimeString() string {
	return h.Timestamp.Format("15:04:05")
}

// Sample is one height/power reading. A sounding with no detected return at
// a height bin decodes with HasPower false; a genuine zero-dB reading keeps
// HasPower true, so the absent sentinel is never conflated with a real zero.
type Sample struct {
	Height      float64 // virtual height, km
	Power       float64 // mean power, dB; meaningful only when HasPower
	HasPower    bool
	DopplerFlag uint8
}

// FrequencyBin holds one frequency's readings within a time block.
type FrequencyBin struct {
	NoiseFlag  uint8
	NoisePower uint16 // noise power scaled by 10
	Samples    []Sample
}

// TimeBlock is one minute/second slice of the sounding body. Bins is always
// index-aligned with the ionogram's frequency table.
type TimeBlock struct {
	Minute   uint8
	Second   uint8
	GainFlag uint8
	Bins     []FrequencyBin
}

// Ionogram is the decoded record for one sounding. It is constructed once by
// Decode and read-only thereafter.
type Ionogram struct {
	Header

	Frequencies []float64 // Hz, ascending as recorded
	Blocks      []TimeBlock
	RawLength   int // original byte length of the source buffer
}

// FrequencyMHz returns the i-th sounded frequency in MHz.
func (ion *Ionogram) FrequencyMHz(i int) float64 {
	return ion.Frequencies[i] / 1e6
}

// Traces flattens the time blocks into one sample sequence per frequency,
// index-aligned with Frequencies. A frequency with no detected returns gets
// an empty trace.
func (ion *Ionogram) Traces() [][]Sample {
	traces := make([][]Sample, len(ion.Frequencies))
	for _, blk := range ion.Blocks {
		for i, bin := range blk.Bins {
			traces[i] = append(traces[i], bin.Samples...)
		}
	}
	return traces
}

// SampleCount returns the total number of decoded samples across all blocks.
func (ion *Ionogram) SampleCount() int {
	n := 0
	for _, blk := range ion.Blocks {
		for _, bin := range blk.Bins {
			n += len(bin.Samples)
		}
	}
	return n
}
