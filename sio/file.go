package sio

import (
	"io"
	"os"

	codecerrors "github.com/lateen-io/lateen/errors"
)

// fileStream wraps an *os.File.  Close releases only the descriptor this
// factory opened.
type fileStream struct {
	f   *os.File
	eof bool
}

// OpenRead opens path for reading.
func OpenRead(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.OpenFile, "sio.open_read", err)
	}
	return &fileStream{f: f}, nil
}

// OpenWrite creates or truncates path for writing.
func OpenWrite(path string) (Stream, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.OpenFile, "sio.open_write", err)
	}
	return &fileStream{f: f}, nil
}

func (s *fileStream) Read(buf []byte) (int, error) {
	n, err := s.f.Read(buf)
	if err == io.EOF {
		s.eof = true
		return n, nil
	}
	if err != nil {
		return n, codecerrors.Wrap(codecerrors.ReadIO, "sio.file.read", err)
	}
	return n, nil
}

func (s *fileStream) Write(buf []byte) (int, error) {
	n, err := s.f.Write(buf)
	if err != nil {
		return n, codecerrors.Wrap(codecerrors.WriteIO, "sio.file.write", err)
	}
	return n, nil
}

func (s *fileStream) Seek(offset int64, whence int) (int64, error) {
	pos, err := s.f.Seek(offset, whence)
	if err != nil {
		return pos, codecerrors.Wrap(codecerrors.SeekIO, "sio.file.seek", err)
	}
	s.eof = false
	return pos, nil
}

func (s *fileStream) Tell() (int64, error) {
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, codecerrors.Wrap(codecerrors.SeekIO, "sio.file.tell", err)
	}
	return pos, nil
}

func (s *fileStream) Flush() error {
	if err := s.f.Sync(); err != nil {
		return codecerrors.Wrap(codecerrors.WriteIO, "sio.file.flush", err)
	}
	return nil
}

func (s *fileStream) EOF() bool { return s.eof }

func (s *fileStream) Close() error {
	if err := s.f.Close(); err != nil {
		return codecerrors.Wrap(codecerrors.WriteIO, "sio.file.close", err)
	}
	return nil
}
