package mdx

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Decode parses one MD2/MD4 record from buf into an Ionogram. Decoding is
// deterministic: the same buffer always yields the same record or the same
// classified error. Buf is not retained; all decoded fields own their data.
func Decode(buf []byte) (*Ionogram, error) {
	r := NewRecordReader(buf)

	hdr, err := decodeHeader(r)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	freqs, err := decodeFrequencyTable(r, int(hdr.NumFreqs))
	if err != nil {
		return nil, fmt.Errorf("frequency table: %w", err)
	}

	blocks, err := decodeBody(r, hdr, len(freqs))
	if err != nil {
		return nil, fmt.Errorf("sample block: %w", err)
	}

	return &Ionogram{
		Header:      *hdr,
		Frequencies: freqs,
		Blocks:      blocks,
		RawLength:   len(buf),
	}, nil
}

// =============================================================================
// Header
// =============================================================================

func decodeHeader(r *RecordReader) (*Header, error) {
	var hdr Header
	var err error

	if hdr.Site, err = r.String(3); err != nil {
		return nil, err
	}

	rawDT, err := r.Bytes(22)
	if err != nil {
		return nil, err
	}
	hdr.ASCIIDatetime = string(rawDT)

	ft, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if ft != FileTypeIonogram && ft != FileTypeDrift {
		return nil, fmt.Errorf("%w: discriminator %q", ErrUnsupportedFormat, string(ft))
	}
	hdr.FileType = ft

	if hdr.NumFreqs, err = r.Uint16(); err != nil {
		return nil, err
	}
	if hdr.NumDops, err = r.Uint8(); err != nil {
		return nil, err
	}
	if hdr.MinHeight, err = r.Uint16(); err != nil {
		return nil, err
	}
	if hdr.MaxHeight, err = r.Uint16(); err != nil {
		return nil, err
	}
	if hdr.PPS, err = r.Uint8(); err != nil {
		return nil, err
	}
	if hdr.PulsesAveraged, err = r.Uint8(); err != nil {
		return nil, err
	}
	if hdr.BaseThresh100, err = r.Uint16(); err != nil {
		return nil, err
	}
	if hdr.NoiseThresh100, err = r.Uint16(); err != nil {
		return nil, err
	}
	if hdr.MinDopForSave, err = r.Uint8(); err != nil {
		return nil, err
	}
	if hdr.DTime, err = r.Uint16(); err != nil {
		return nil, err
	}

	gc, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	hdr.GainControl = gc

	sp, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	hdr.SigProcess = sp

	if hdr.Receivers, err = r.Uint8(); err != nil {
		return nil, err
	}
	if hdr.Spares, err = r.String(11); err != nil {
		return nil, err
	}

	if hdr.NumFreqs == 0 || hdr.NumFreqs > MaxFrequencies {
		return nil, fmt.Errorf("%w: frequency count %d outside (0, %d]",
			ErrCorruptHeader, hdr.NumFreqs, MaxFrequencies)
	}
	if hdr.Receivers == 0 || hdr.Receivers > MaxReceivers {
		return nil, fmt.Errorf("%w: receiver count %d outside [1, %d]",
			ErrCorruptHeader, hdr.Receivers, MaxReceivers)
	}
	if hdr.MaxHeight < hdr.MinHeight {
		return nil, fmt.Errorf("%w: max height %d below min height %d",
			ErrCorruptHeader, hdr.MaxHeight, hdr.MinHeight)
	}

	hdr.Timestamp, err = parseHeaderTimestamp(hdr.ASCIIDatetime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}

	return &hdr, nil
}

// parseHeaderTimestamp parses the 22-char ASCII timestamp field, laid out as
// " Mon dd hh:mm:ss yyyy " with a named month. The result is UTC; station
// clocks record universal time.
func parseHeaderTimestamp(s string) (time.Time, error) {
	if len(s) != 22 {
		return time.Time{}, fmt.Errorf("timestamp field is %d chars, want 22", len(s))
	}

	mon, err := time.Parse("Jan", s[1:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad month %q", s[1:4])
	}

	day, err := atoiField("day", s[5:7])
	if err != nil {
		return time.Time{}, err
	}
	hour, err := atoiField("hour", s[8:10])
	if err != nil {
		return time.Time{}, err
	}
	minute, err := atoiField("minute", s[11:13])
	if err != nil {
		return time.Time{}, err
	}
	sec, err := atoiField("second", s[14:16])
	if err != nil {
		return time.Time{}, err
	}
	year, err := atoiField("year", s[17:21])
	if err != nil {
		return time.Time{}, err
	}

	if hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("time %02d:%02d:%02d out of range", hour, minute, sec)
	}

	ts := time.Date(year, mon.Month(), day, hour, minute, sec, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 becomes Mar 2); a
	// shifted day means the field was not a real calendar date.
	if ts.Day() != day || ts.Month() != mon.Month() {
		return time.Time{}, fmt.Errorf("day %d invalid for %s %d", day, s[1:4], year)
	}
	return ts, nil
}

func atoiField(name, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad %s %q", name, s)
	}
	return v, nil
}

// =============================================================================
// Frequency Table
// =============================================================================

func decodeFrequencyTable(r *RecordReader, n int) ([]float64, error) {
	freqs := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := r.Float32()
		if err != nil {
			return nil, err
		}
		freqs[i] = float64(f)
		// NaN compares false against everything, so it would slip past the
		// ordering checks below.
		if math.IsNaN(freqs[i]) || math.IsInf(freqs[i], 0) {
			return nil, fmt.Errorf("%w: non-finite frequency at index %d",
				ErrCorruptFrequencyTable, i)
		}
		if f < 0 {
			return nil, fmt.Errorf("%w: negative frequency %g at index %d",
				ErrCorruptFrequencyTable, f, i)
		}
		// Duplicates are legal (repeated soundings); decreasing is not.
		if i > 0 && freqs[i] < freqs[i-1] {
			return nil, fmt.Errorf("%w: frequency %g at index %d decreases from %g",
				ErrCorruptFrequencyTable, freqs[i], i, freqs[i-1])
		}
	}
	return freqs, nil
}

// =============================================================================
// Body
// =============================================================================

func decodeBody(r *RecordReader, hdr *Header, nfreqs int) ([]TimeBlock, error) {
	var blocks []TimeBlock

	for {
		minute, err := r.Uint8()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", len(blocks), err)
		}
		if minute == BodyEndMarker {
			return blocks, nil
		}

		blk, term, err := decodeTimeBlock(r, minute, int(hdr.Receivers), nfreqs)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", len(blocks), err)
		}
		blocks = append(blocks, blk)

		// Archived files end with a single 0xFF: the last frequency's
		// terminator doubles as the body end marker when it is the final
		// byte of the record.
		if term == BodyEndMarker && r.Remaining() == 0 {
			return blocks, nil
		}
	}
}

func decodeTimeBlock(r *RecordReader, minute uint8, receivers, nfreqs int) (TimeBlock, byte, error) {
	blk := TimeBlock{Minute: minute}
	var err error

	if blk.Second, err = r.Uint8(); err != nil {
		return blk, 0, err
	}
	if blk.GainFlag, err = r.Uint8(); err != nil {
		return blk, 0, err
	}

	var term byte
	blk.Bins = make([]FrequencyBin, nfreqs)
	for i := range blk.Bins {
		t, err := decodeFrequencyBin(r, &blk.Bins[i], receivers)
		if err != nil {
			return blk, 0, fmt.Errorf("frequency %d: %w", i, err)
		}
		term = t
	}
	return blk, term, nil
}

// decodeFrequencyBin decodes one frequency's height-bin groups and returns
// the terminator byte that ended them.
func decodeFrequencyBin(r *RecordReader, bin *FrequencyBin, receivers int) (byte, error) {
	var err error

	if bin.NoiseFlag, err = r.Uint8(); err != nil {
		return 0, err
	}
	if bin.NoisePower, err = r.Uint16(); err != nil {
		return 0, err
	}

	for {
		flag, err := r.Uint8()
		if err != nil {
			return 0, err
		}
		if flag >= binTerminator {
			return flag, nil
		}

		count, err := r.Uint8()
		if err != nil {
			return 0, err
		}
		hbin := int(flag)
		if count >= 128 {
			count -= 128
			hbin += hbinExtension
		}

		for d := 0; d < int(count); d++ {
			sample, err := decodeSample(r, receivers, hbin)
			if err != nil {
				return 0, err
			}
			bin.Samples = append(bin.Samples, sample)
		}
	}
}

func decodeSample(r *RecordReader, receivers, hbin int) (Sample, error) {
	dop, err := r.Uint8()
	if err != nil {
		return Sample{}, err
	}

	mags := make([]float64, receivers)
	for j := 0; j < receivers; j++ {
		ib, err := r.Uint8()
		if err != nil {
			return Sample{}, err
		}
		qb, err := r.Uint8()
		if err != nil {
			return Sample{}, err
		}
		mags[j] = math.Hypot(signedOffset(ib), signedOffset(qb))
	}

	s := Sample{
		Height:      float64(hbin) * HeightStepKM,
		DopplerFlag: dop,
	}
	// A zero median is the no-return sentinel, not a 0 dB reading.
	if m := median(mags); m > 0 {
		s.Power = 20 * math.Log10(m)
		s.HasPower = true
	}
	return s, nil
}

// signedOffset interprets a raw I/Q byte as a signed offset around zero.
func signedOffset(b uint8) float64 {
	if b > 127 {
		return float64(int(b) - 256)
	}
	return float64(b)
}

func median(v []float64) float64 {
	s := make([]float64, len(v))
	copy(s, v)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
