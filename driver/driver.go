// Package driver sequences codec entry points over a stream: the load/save
// state machine that owns per-operation codec state and guarantees finish
// runs on every exit path.
package driver

import (
	"strings"
	"time"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
)

type state int

const (
	stateReady state = iota
	stateInitialized
	stateFrameHeader
	stateFinished
)

// Option configures a Loader or Saver.
type Option func(*observers)

type observers struct {
	logger  core.Logger
	hooks   []core.Hook
	metrics core.MetricsCollector
}

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option { return func(o *observers) { o.logger = l } }

// WithHook registers an observer around every codec entry point.
func WithHook(h core.Hook) Option { return func(o *observers) { o.hooks = append(o.hooks, h) } }

// WithMetrics attaches a metrics collector.
func WithMetrics(m core.MetricsCollector) Option { return func(o *observers) { o.metrics = m } }

func newObservers(opts []Option) observers {
	o := observers{logger: core.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *observers) run(codecName, op string, fn func() error) error {
	for _, h := range o.hooks {
		h.BeforeOp(codecName, op)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if o.metrics != nil {
		o.metrics.RecordOpTime(codecName, op, elapsed)
		if err != nil && !codecerrors.IsNoMoreFrames(err) {
			o.metrics.RecordError(codecName, op)
		}
	}
	for _, h := range o.hooks {
		h.AfterOp(codecName, op, err)
	}
	if err != nil && !codecerrors.IsNoMoreFrames(err) {
		o.logger.Error(strings.ToUpper(codecName)+": "+op, "error", err)
	}
	return err
}

// FrameSkipper is optionally implemented by codecs that can seek past a
// frame's pixels without decoding them.
type FrameSkipper interface {
	CanSkipFrames() bool
}

// Loader drives one load operation.  It is not safe for concurrent use;
// concurrent callers use separate Loader instances.
type Loader struct {
	desc    *registry.Descriptor
	codec   core.Codec
	stream  sio.Stream
	options core.LoadOptions
	obs     observers

	st         state
	codecState core.LoadState
	current    *core.Image
}

// NewLoader binds a descriptor to a stream.  The stream stays open for the
// Loader's whole lifetime and is never closed by it.
func NewLoader(desc *registry.Descriptor, stream sio.Stream, options core.LoadOptions, opts ...Option) (*Loader, error) {
	if desc == nil || stream == nil {
		return nil, codecerrors.New(codecerrors.NullPointer, "driver.new_loader")
	}
	codec, err := desc.Codec()
	if err != nil {
		return nil, err
	}
	return &Loader{
		desc:    desc,
		codec:   codec,
		stream:  stream,
		options: options,
		obs:     newObservers(opts),
	}, nil
}

// Descriptor returns the codec descriptor this Loader drives.
func (l *Loader) Descriptor() *registry.Descriptor { return l.desc }

// Start runs load_init.  READY -> INITIALIZED.
func (l *Loader) Start() error {
	if l.st != stateReady {
		return codecerrors.Newf(codecerrors.InvalidArgument, "driver.start_load",
			"start from state %d", l.st)
	}
	err := l.obs.run(l.desc.Name, "load_init", func() error {
		st, err := l.codec.LoadInit(l.stream, l.options)
		l.codecState = st
		return err
	})
	if err != nil {
		l.st = stateFinished
		return err
	}
	l.st = stateInitialized
	return nil
}

// NextFrame runs load_seek_next_frame and allocates the frame's zeroed pixel
// buffer.  INITIALIZED -> FRAME_HEADER.  From FRAME_HEADER it skips the
// pending frame's pixels, which only codecs implementing FrameSkipper allow.
// A NO_MORE_FRAMES result finishes the operation and is returned as-is,
// unless finishing fails, in which case the finish error is returned.
func (l *Loader) NextFrame() (*core.Image, error) {
	switch l.st {
	case stateInitialized:
	case stateFrameHeader:
		if fs, ok := l.codec.(FrameSkipper); !ok || !fs.CanSkipFrames() {
			return nil, codecerrors.Newf(codecerrors.UnsupportedIOOperation, "driver.next_frame",
				"codec %q cannot seek past pixels", l.desc.Name)
		}
	default:
		return nil, codecerrors.Newf(codecerrors.InvalidArgument, "driver.next_frame",
			"next_frame from state %d", l.st)
	}

	var img *core.Image
	err := l.obs.run(l.desc.Name, "load_seek_next_frame", func() error {
		var err error
		img, err = l.codec.LoadSeekNextFrame(l.codecState)
		return err
	})
	if err != nil {
		stopErr := l.Stop()
		if codecerrors.IsNoMoreFrames(err) && stopErr != nil {
			return nil, stopErr
		}
		return nil, err
	}

	if err := img.CheckSkeletonValid(); err != nil {
		l.Stop()
		return nil, err
	}
	// Codecs must not allocate pixels; the driver owns the buffer.
	img.Pixels = make([]byte, core.BytesPerImage(img))

	l.current = img
	l.st = stateFrameHeader
	return img, nil
}

// ReadFrame runs load_frame on the image returned by the preceding
// NextFrame.  FRAME_HEADER -> INITIALIZED.
func (l *Loader) ReadFrame() (*core.Image, error) {
	if l.st != stateFrameHeader {
		return nil, codecerrors.Newf(codecerrors.InvalidArgument, "driver.read_frame",
			"read_frame from state %d", l.st)
	}
	img := l.current
	err := l.obs.run(l.desc.Name, "load_frame", func() error {
		return l.codec.LoadFrame(l.codecState, img)
	})
	if err != nil {
		l.Stop()
		return nil, err
	}
	if l.obs.metrics != nil {
		l.obs.metrics.RecordFrame(l.desc.Name, int64(core.BytesPerImage(img)))
	}
	l.current = nil
	l.st = stateInitialized
	return img, nil
}

// Stop runs load_finish.  Idempotent; safe on every exit path.  The stream is
// left open for the caller.
func (l *Loader) Stop() error {
	if l.st == stateFinished {
		return nil
	}
	started := l.st != stateReady
	l.st = stateFinished
	l.current = nil
	if !started {
		return nil
	}
	st := l.codecState
	l.codecState = nil
	return l.obs.run(l.desc.Name, "load_finish", func() error {
		return l.codec.LoadFinish(st)
	})
}
