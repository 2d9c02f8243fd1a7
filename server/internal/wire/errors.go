package wire

import "errors"

// Sentinel errors for the bit-packed wire format. Callers compare with
// errors.Is rather than matching on an error-code enum.
var (
	// ErrBufferUnderrun is returned when a read would consume past the end
	// of the backing byte slice.
	ErrBufferUnderrun = errors.New("wire: buffer underrun")
	// ErrBaselineMismatch is returned when decode's declared baseline
	// sequence does not match the baseline supplied by the caller.
	ErrBaselineMismatch = errors.New("wire: baseline mismatch")
	// ErrVarintOverflow is returned when a varint runs for 5 bytes, each
	// with the continuation bit set, without terminating.
	ErrVarintOverflow = errors.New("wire: varint overflow")
	// ErrQuantizationOutOfRange is returned by the encode-time assertion in
	// debug builds; release callers clamp instead of returning this.
	ErrQuantizationOutOfRange = errors.New("wire: quantization out of range")
)
