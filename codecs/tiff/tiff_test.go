package tiff

import (
	"bytes"
	"testing"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/driver"
	"github.com/lateen-io/lateen/sio"
)

func TestRoundtripGray(t *testing.T) {
	src := core.NewImage()
	src.Width = 3
	src.Height = 2
	src.PixelFormat = core.PixelFormatBPP8Grayscale
	src.BytesPerLine = 3
	src.Pixels = []byte{0, 100, 200, 30, 60, 90}

	var out []byte
	s, err := driver.NewSaver(NewDescriptor(), sio.GrowMemory(&out), core.DefaultSaveOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFrame(src); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	l, err := driver.NewLoader(NewDescriptor(), sio.ReadMemory(out), core.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Stop()
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := l.NextFrame(); err != nil {
		t.Fatal(err)
	}
	got, err := l.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if got.PixelFormat != core.PixelFormatBPP8Grayscale {
		t.Fatalf("pixel format %s", got.PixelFormat)
	}
	if !bytes.Equal(got.Pixels, src.Pixels) {
		t.Errorf("pixels: got %v, want %v", got.Pixels, src.Pixels)
	}
	if _, err := l.NextFrame(); !codecerrors.IsNoMoreFrames(err) {
		t.Errorf("want NO_MORE_FRAMES, got %v", err)
	}
}

func TestUnsupportedSaveCompression(t *testing.T) {
	opts := core.DefaultSaveOptions()
	opts.Compression = core.CompressionVP8

	var out []byte
	s, err := driver.NewSaver(NewDescriptor(), sio.GrowMemory(&out), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); !codecerrors.Is(err, codecerrors.UnsupportedCompression) {
		t.Errorf("want UNSUPPORTED_COMPRESSION, got %v", err)
	}
}
