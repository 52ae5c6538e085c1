package mdx

import "errors"

// Decode failure kinds. Errors returned by this package wrap exactly one of
// these sentinels, so callers can classify failures with errors.Is while the
// wrapped message carries the file offset and decode stage.
var (
	// ErrTruncated indicates the buffer ended before a field's declared width.
	ErrTruncated = errors.New("truncated record")

	// ErrOffsetOutOfRange indicates a seek outside the buffer bounds.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrUnsupportedFormat indicates an unrecognized file type discriminator.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrCorruptHeader indicates header fields outside sane bounds.
	ErrCorruptHeader = errors.New("corrupt header")

	// ErrCorruptFrequencyTable indicates a decreasing frequency table.
	ErrCorruptFrequencyTable = errors.New("corrupt frequency table")

	// ErrUnknownFeatureFlag indicates a feature shorthand character outside
	// the d/t/f/h/m alphabet.
	ErrUnknownFeatureFlag = errors.New("unknown feature flag")
)
