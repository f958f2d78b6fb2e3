// Package errors defines the status taxonomy shared by the whole module.
// Every fallible operation returns a *CodecError wrapping one of the Status
// values below.
package errors

import (
	"errors"
	"fmt"
)

// Status classifies error kinds for targeted handling and monitoring.
type Status int

const (
	OK Status = iota

	// Argument errors.
	NullPointer
	InvalidArgument
	UnsupportedIOOperation

	// I/O errors.
	ReadIO
	WriteIO
	SeekIO
	EOF
	OpenFile

	// Memory errors.
	OutOfMemory

	// Image semantics.
	BrokenImage
	UnsupportedPixelFormat
	UnsupportedCompression
	IncorrectImageDimensions
	InvalidIO

	// Sequencing. NoMoreFrames is a sentinel consumed by the driver to
	// terminate frame iteration, not a true failure.
	NoMoreFrames

	// Codec lifecycle.
	CodecNotFound
	CannotLoadCodecModule
	MissingEntryPoint
	UnsupportedCodecLayout
	UnderlyingCodec

	NotImplemented
)

var statusNames = map[Status]string{
	OK:                       "OK",
	NullPointer:              "NULL_POINTER",
	InvalidArgument:          "INVALID_ARGUMENT",
	UnsupportedIOOperation:   "UNSUPPORTED_IO_OPERATION",
	ReadIO:                   "READ_IO",
	WriteIO:                  "WRITE_IO",
	SeekIO:                   "SEEK_IO",
	EOF:                      "IO_EOF",
	OpenFile:                 "OPEN_FILE",
	OutOfMemory:              "OUT_OF_MEMORY",
	BrokenImage:              "BROKEN_IMAGE",
	UnsupportedPixelFormat:   "UNSUPPORTED_PIXEL_FORMAT",
	UnsupportedCompression:   "UNSUPPORTED_COMPRESSION",
	IncorrectImageDimensions: "INCORRECT_IMAGE_DIMENSIONS",
	InvalidIO:                "INVALID_IO",
	NoMoreFrames:             "NO_MORE_FRAMES",
	CodecNotFound:            "CODEC_NOT_FOUND",
	CannotLoadCodecModule:    "CANNOT_LOAD_CODEC_MODULE",
	MissingEntryPoint:        "MISSING_ENTRY_POINT",
	UnsupportedCodecLayout:   "UNSUPPORTED_CODEC_LAYOUT",
	UnderlyingCodec:          "UNDERLYING_CODEC",
	NotImplemented:           "NOT_IMPLEMENTED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// CodecError is the structured error type used throughout the module.
type CodecError struct {
	Status Status
	Op     string // operation name, e.g. "webp.load_frame"
	Err    error  // underlying cause, may be nil
}

func (e *CodecError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Status, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Status, e.Op, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// New creates a CodecError with no underlying cause.
func New(status Status, op string) *CodecError {
	return &CodecError{Status: status, Op: op}
}

// Newf creates a CodecError with a formatted cause.
func Newf(status Status, op, format string, args ...interface{}) *CodecError {
	return &CodecError{Status: status, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap wraps an existing error with a status and operation. Returns nil when
// err is nil. If err already carries a status, that status is preserved so
// callers higher up the stack see the original classification.
func Wrap(status Status, op string, err error) error {
	if err == nil {
		return nil
	}
	if s, ok := StatusOf(err); ok {
		status = s
	}
	return &CodecError{Status: status, Op: op, Err: err}
}

// StatusOf extracts the Status from err, if any.
func StatusOf(err error) (Status, bool) {
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Status, true
	}
	return OK, false
}

// Is reports whether err carries the given status.
func Is(err error, status Status) bool {
	s, ok := StatusOf(err)
	return ok && s == status
}

// IsNoMoreFrames reports whether err is the end-of-frames sentinel.
func IsNoMoreFrames(err error) bool { return Is(err, NoMoreFrames) }
