package sio

import (
	codecerrors "github.com/lateen-io/lateen/errors"
)

// readMemory is a read-only stream over a caller-owned byte slice.
type readMemory struct {
	data []byte
	pos  int64
}

// ReadMemory creates a read-only stream over data.  The slice is not copied;
// the caller must keep it alive for the stream's lifetime.
func ReadMemory(data []byte) Stream {
	return &readMemory{data: data}
}

func (s *readMemory) Read(buf []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(buf, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *readMemory) Write([]byte) (int, error) {
	return 0, codecerrors.New(codecerrors.UnsupportedIOOperation, "sio.mem.write")
}

func (s *readMemory) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(s.pos, int64(len(s.data)), offset, whence)
	if err != nil {
		return s.pos, err
	}
	// Read-only memory has a hard end; seeking past it cannot extend anything.
	if pos > int64(len(s.data)) {
		return s.pos, codecerrors.Newf(codecerrors.SeekIO, "sio.mem.seek",
			"offset %d past end of %d-byte buffer", pos, len(s.data))
	}
	s.pos = pos
	return s.pos, nil
}

func (s *readMemory) Tell() (int64, error) { return s.pos, nil }
func (s *readMemory) Flush() error         { return nil }
func (s *readMemory) EOF() bool            { return s.pos >= int64(len(s.data)) }
func (s *readMemory) Close() error         { return nil }

// writeMemory is a bounded read-write stream over a caller-owned byte slice.
// Writing past the end fails with IO_EOF.
type writeMemory struct {
	data []byte
	pos  int64
}

// WriteMemory creates a bounded stream writing into data in place.
func WriteMemory(data []byte) Stream {
	return &writeMemory{data: data}
}

func (s *writeMemory) Read(buf []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(buf, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *writeMemory) Write(buf []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, codecerrors.New(codecerrors.EOF, "sio.mem.write")
	}
	n := copy(s.data[s.pos:], buf)
	s.pos += int64(n)
	if n < len(buf) {
		return n, codecerrors.New(codecerrors.EOF, "sio.mem.write")
	}
	return n, nil
}

func (s *writeMemory) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(s.pos, int64(len(s.data)), offset, whence)
	if err != nil {
		return s.pos, err
	}
	if pos > int64(len(s.data)) {
		return s.pos, codecerrors.Newf(codecerrors.SeekIO, "sio.mem.seek",
			"offset %d past end of %d-byte buffer", pos, len(s.data))
	}
	s.pos = pos
	return s.pos, nil
}

func (s *writeMemory) Tell() (int64, error) { return s.pos, nil }
func (s *writeMemory) Flush() error         { return nil }
func (s *writeMemory) EOF() bool            { return s.pos >= int64(len(s.data)) }
func (s *writeMemory) Close() error         { return nil }

// growMemory is an unbounded stream pushing into a caller-owned growable
// buffer.  Seeking past the end only moves the cursor; the next write fills
// the gap with zero bytes, matching the behavior of a writable file.
type growMemory struct {
	dst *[]byte
	pos int64
}

// GrowMemory creates an unbounded stream writing into *dst.  The cursor
// starts at zero, so writes overwrite existing contents from the start; the
// buffer is never truncated and grows when a write passes its end.
func GrowMemory(dst *[]byte) Stream {
	return &growMemory{dst: dst}
}

func (s *growMemory) Read(buf []byte) (int, error) {
	if s.pos >= int64(len(*s.dst)) {
		return 0, nil
	}
	n := copy(buf, (*s.dst)[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *growMemory) Write(buf []byte) (int, error) {
	end := s.pos + int64(len(buf))
	if grow := end - int64(len(*s.dst)); grow > 0 {
		*s.dst = append(*s.dst, make([]byte, grow)...)
	}
	copy((*s.dst)[s.pos:end], buf)
	s.pos = end
	return len(buf), nil
}

func (s *growMemory) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(s.pos, int64(len(*s.dst)), offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return s.pos, nil
}

func (s *growMemory) Tell() (int64, error) { return s.pos, nil }
func (s *growMemory) Flush() error         { return nil }
func (s *growMemory) EOF() bool            { return s.pos >= int64(len(*s.dst)) }
func (s *growMemory) Close() error         { return nil }

func resolveSeek(cur, size, offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case SeekStart:
		pos = offset
	case SeekCurrent:
		pos = cur + offset
	case SeekEnd:
		pos = size + offset
	default:
		return 0, codecerrors.Newf(codecerrors.InvalidArgument, "sio.seek", "bad whence %d", whence)
	}
	if pos < 0 {
		return 0, codecerrors.Newf(codecerrors.SeekIO, "sio.seek", "negative offset %d", pos)
	}
	return pos, nil
}
