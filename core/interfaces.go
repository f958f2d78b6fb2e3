package core

import (
	"github.com/lateen-io/lateen/sio"
)

// CodecLayoutVersion is the codec ABI version this host binds.  A codec built
// against a different layout is refused at registration time.
const CodecLayoutVersion = 8

// LoadState is the opaque per-operation handle a codec returns from LoadInit.
// The host never inspects it; the driver owns its lifetime and destroys it
// through LoadFinish exactly once.
type LoadState interface{}

// SaveState is the save-path analogue of LoadState.
type SaveState interface{}

// Codec is the eight-operation contract every format backend implements.
//
// Host guarantees codecs may rely on: the stream passed to an init call is the
// same one the codec sees until the matching finish; the image passed to
// LoadFrame is the one returned from the preceding LoadSeekNextFrame, with a
// zeroed pixel buffer allocated by the driver; states never alias across
// concurrent operations.
//
// Codec obligations: LoadSeekNextFrame must allocate the image skeleton
// (geometry, pixel format as close to the source as possible, metadata, ICC
// on the first frame only, source descriptor) and must NOT allocate pixels;
// LoadFrame fills pixels in scan-line order with a top-left origin, running
// any interlace passes internally; finish calls must not close the stream.
type Codec interface {
	LoadInit(s sio.Stream, options LoadOptions) (LoadState, error)
	LoadSeekNextFrame(state LoadState) (*Image, error)
	LoadFrame(state LoadState, img *Image) error
	LoadFinish(state LoadState) error

	SaveInit(s sio.Stream, options SaveOptions) (SaveState, error)
	SaveSeekNextFrame(state SaveState, img *Image) error
	SaveFrame(state SaveState, img *Image) error
	SaveFinish(state SaveState) error
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything; it backs the zero configuration.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// MetricsCollector receives performance observations from the driver.
type MetricsCollector interface {
	RecordOpTime(codecName, op string, d interface{ Seconds() float64 })
	RecordFrame(codecName string, bytes int64)
	RecordError(codecName, op string)
}

// Hook observes driver transitions around codec entry points.
type Hook interface {
	BeforeOp(codecName, op string)
	AfterOp(codecName, op string, err error)
}
