// Package sio provides the polymorphic stream abstraction consumed by all
// codecs: a small capability interface with concrete variants for OS files,
// fixed memory buffers, growable buffers, and caller-supplied callbacks.
//
// The stream's lifetime is managed by the caller.  The load/save driver never
// closes a stream it did not open.
package sio

import (
	"io"

	codecerrors "github.com/lateen-io/lateen/errors"
)

// Seek whence values.  They match the io package so implementations can
// forward directly to os.File.
const (
	SeekStart   = io.SeekStart
	SeekCurrent = io.SeekCurrent
	SeekEnd     = io.SeekEnd
)

// Stream is the capability interface every codec reads from and writes to.
//
// Read and Write permit partial transfers.  After any successful operation
// Tell reports the logical cursor.  EOF reports whether the cursor is at or
// past the end of the data.
type Stream interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	Flush() error
	EOF() bool
	Close() error
}

// StrictRead fills buf completely or fails with READ_IO.
func StrictRead(s Stream, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.Read(buf[total:])
		total += n
		if err != nil || n == 0 {
			return codecerrors.Newf(codecerrors.ReadIO, "sio.strict_read",
				"requested %d bytes, got %d", len(buf), total)
		}
	}
	return nil
}

// StrictWrite writes buf completely or fails with WRITE_IO; an IO_EOF from a
// full bounded stream is returned unchanged.
func StrictWrite(s Stream, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.Write(buf[total:])
		total += n
		if err != nil {
			if st, ok := codecerrors.StatusOf(err); ok && st == codecerrors.EOF {
				return err
			}
			return codecerrors.Wrap(codecerrors.WriteIO, "sio.strict_write", err)
		}
		if n == 0 {
			return codecerrors.Newf(codecerrors.WriteIO, "sio.strict_write",
				"requested %d bytes, wrote %d", len(buf), total)
		}
	}
	return nil
}

// Reader adapts a Stream to io.Reader.  A zero-byte read with the stream at
// EOF yields io.EOF, which lets stdlib decoders consume streams directly.
func Reader(s Stream) io.Reader { return readerAdapter{s} }

type readerAdapter struct{ s Stream }

func (r readerAdapter) Read(p []byte) (int, error) {
	n, err := r.s.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 && r.s.EOF() {
		return 0, io.EOF
	}
	return n, nil
}

// Writer adapts a Stream to io.Writer.
func Writer(s Stream) io.Writer { return writerAdapter{s} }

type writerAdapter struct{ s Stream }

func (w writerAdapter) Write(p []byte) (int, error) { return w.s.Write(p) }
