package sio

import (
	codecerrors "github.com/lateen-io/lateen/errors"
)

// Callbacks supplies the operations of a caller-implemented stream.  A nil
// Read, Write, Seek or Tell fails with UNSUPPORTED_IO_OPERATION when invoked,
// which lets read-only or write-only sources implement just what they
// support; a nil Flush or Close succeeds and a nil EOF reports false.
type Callbacks struct {
	ReadFn  func(buf []byte) (int, error)
	WriteFn func(buf []byte) (int, error)
	SeekFn  func(offset int64, whence int) (int64, error)
	TellFn  func() (int64, error)
	FlushFn func() error
	EOFFn   func() bool
	CloseFn func() error
}

// NewCallbackStream wraps cb as a Stream.
func NewCallbackStream(cb Callbacks) Stream {
	return &callbackStream{cb: cb}
}

type callbackStream struct {
	cb Callbacks
}

func (s *callbackStream) Read(buf []byte) (int, error) {
	if s.cb.ReadFn == nil {
		return 0, codecerrors.New(codecerrors.UnsupportedIOOperation, "sio.callback.read")
	}
	n, err := s.cb.ReadFn(buf)
	return n, codecerrors.Wrap(codecerrors.ReadIO, "sio.callback.read", err)
}

func (s *callbackStream) Write(buf []byte) (int, error) {
	if s.cb.WriteFn == nil {
		return 0, codecerrors.New(codecerrors.UnsupportedIOOperation, "sio.callback.write")
	}
	n, err := s.cb.WriteFn(buf)
	return n, codecerrors.Wrap(codecerrors.WriteIO, "sio.callback.write", err)
}

func (s *callbackStream) Seek(offset int64, whence int) (int64, error) {
	if s.cb.SeekFn == nil {
		return 0, codecerrors.New(codecerrors.UnsupportedIOOperation, "sio.callback.seek")
	}
	pos, err := s.cb.SeekFn(offset, whence)
	return pos, codecerrors.Wrap(codecerrors.SeekIO, "sio.callback.seek", err)
}

func (s *callbackStream) Tell() (int64, error) {
	if s.cb.TellFn == nil {
		return 0, codecerrors.New(codecerrors.UnsupportedIOOperation, "sio.callback.tell")
	}
	pos, err := s.cb.TellFn()
	return pos, codecerrors.Wrap(codecerrors.SeekIO, "sio.callback.tell", err)
}

func (s *callbackStream) Flush() error {
	if s.cb.FlushFn == nil {
		return nil
	}
	return codecerrors.Wrap(codecerrors.WriteIO, "sio.callback.flush", s.cb.FlushFn())
}

func (s *callbackStream) EOF() bool {
	if s.cb.EOFFn == nil {
		return false
	}
	return s.cb.EOFFn()
}

func (s *callbackStream) Close() error {
	if s.cb.CloseFn == nil {
		return nil
	}
	return s.cb.CloseFn()
}
