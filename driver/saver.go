package driver

import (
	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
)

// Saver drives one save operation.  Not safe for concurrent use.
type Saver struct {
	desc    *registry.Descriptor
	codec   core.Codec
	stream  sio.Stream
	options core.SaveOptions
	obs     observers

	st         state
	codecState core.SaveState
}

// NewSaver binds a descriptor to a stream for saving.
func NewSaver(desc *registry.Descriptor, stream sio.Stream, options core.SaveOptions, opts ...Option) (*Saver, error) {
	if desc == nil || stream == nil {
		return nil, codecerrors.New(codecerrors.NullPointer, "driver.new_saver")
	}
	codec, err := desc.Codec()
	if err != nil {
		return nil, err
	}
	return &Saver{
		desc:    desc,
		codec:   codec,
		stream:  stream,
		options: options,
		obs:     newObservers(opts),
	}, nil
}

// Start runs save_init.  READY -> INITIALIZED.
func (s *Saver) Start() error {
	if s.st != stateReady {
		return codecerrors.Newf(codecerrors.InvalidArgument, "driver.start_save",
			"start from state %d", s.st)
	}
	err := s.obs.run(s.desc.Name, "save_init", func() error {
		st, err := s.codec.SaveInit(s.stream, s.options)
		s.codecState = st
		return err
	})
	if err != nil {
		s.st = stateFinished
		return err
	}
	s.st = stateInitialized
	return nil
}

// WriteFrame validates img, runs save_seek_next_frame then save_frame.
func (s *Saver) WriteFrame(img *core.Image) error {
	if s.st != stateInitialized {
		return codecerrors.Newf(codecerrors.InvalidArgument, "driver.write_frame",
			"write_frame from state %d", s.st)
	}
	if err := img.CheckValid(); err != nil {
		s.Stop()
		return err
	}
	err := s.obs.run(s.desc.Name, "save_seek_next_frame", func() error {
		return s.codec.SaveSeekNextFrame(s.codecState, img)
	})
	if err != nil {
		s.Stop()
		return err
	}
	err = s.obs.run(s.desc.Name, "save_frame", func() error {
		return s.codec.SaveFrame(s.codecState, img)
	})
	if err != nil {
		s.Stop()
		return err
	}
	if s.obs.metrics != nil {
		s.obs.metrics.RecordFrame(s.desc.Name, int64(core.BytesPerImage(img)))
	}
	return nil
}

// Stop runs save_finish.  Idempotent; the stream is left open.
func (s *Saver) Stop() error {
	if s.st == stateFinished {
		return nil
	}
	started := s.st != stateReady
	s.st = stateFinished
	if !started {
		return nil
	}
	st := s.codecState
	s.codecState = nil
	return s.obs.run(s.desc.Name, "save_finish", func() error {
		return s.codec.SaveFinish(st)
	})
}
