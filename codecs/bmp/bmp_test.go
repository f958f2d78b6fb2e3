package bmp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/driver"
	"github.com/lateen-io/lateen/sio"
)

// buildBMP24 writes a bottom-up 24-bit BMP from top-down RGB rows.
func buildBMP24(t *testing.T, width, height int, rgb [][]byte) []byte {
	t.Helper()
	stride := (width*3 + 3) &^ 3
	dataOffset := fileHeaderSize + infoHeaderSize

	var buf bytes.Buffer
	header := make([]byte, dataOffset)
	header[0], header[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(header[2:], uint32(dataOffset+stride*height))
	binary.LittleEndian.PutUint32(header[10:], uint32(dataOffset))
	info := header[fileHeaderSize:]
	binary.LittleEndian.PutUint32(info, infoHeaderSize)
	binary.LittleEndian.PutUint32(info[4:], uint32(width))
	binary.LittleEndian.PutUint32(info[8:], uint32(height))
	binary.LittleEndian.PutUint16(info[12:], 1)
	binary.LittleEndian.PutUint16(info[14:], 24)
	buf.Write(header)

	for y := height - 1; y >= 0; y-- {
		row := make([]byte, stride)
		for x := 0; x < width; x++ {
			// RGB in, BGR on disk.
			row[x*3+0] = rgb[y][x*3+2]
			row[x*3+1] = rgb[y][x*3+1]
			row[x*3+2] = rgb[y][x*3+0]
		}
		buf.Write(row)
	}
	return buf.Bytes()
}

func loadAll(t *testing.T, data []byte) []*core.Image {
	t.Helper()
	l, err := driver.NewLoader(NewDescriptor(), sio.ReadMemory(data), core.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Stop()
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	var frames []*core.Image
	for {
		if _, err := l.NextFrame(); err != nil {
			if codecerrors.IsNoMoreFrames(err) {
				return frames
			}
			t.Fatal(err)
		}
		img, err := l.ReadFrame()
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, img)
	}
}

func TestLoad2x2(t *testing.T) {
	// Top row red, green; bottom row blue, white.
	data := buildBMP24(t, 2, 2, [][]byte{
		{255, 0, 0, 0, 255, 0},
		{0, 0, 255, 255, 255, 255},
	})

	frames := loadAll(t, data)
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	img := frames[0]

	if img.Width != 2 || img.Height != 2 {
		t.Errorf("geometry %dx%d", img.Width, img.Height)
	}
	if img.PixelFormat != core.PixelFormatBPP24RGB {
		t.Errorf("pixel format %s", img.PixelFormat)
	}
	if img.BytesPerLine != 8 {
		t.Errorf("bytes per line %d, want 8 (padded to 4)", img.BytesPerLine)
	}
	if img.Delay != -1 {
		t.Errorf("delay %d, want -1 for a still image", img.Delay)
	}

	want := []byte{
		255, 0, 0, 0, 255, 0, 0, 0,
		0, 0, 255, 255, 255, 255, 0, 0,
	}
	if !bytes.Equal(img.Pixels, want) {
		t.Errorf("pixels\n got %v\nwant %v", img.Pixels, want)
	}

	if img.SourceImage == nil {
		t.Fatal("source image missing")
	}
	if img.SourceImage.PixelFormat != core.PixelFormatBPP24BGR {
		t.Errorf("source pixel format %s", img.SourceImage.PixelFormat)
	}
	if img.SourceImage.Properties&core.PropertyFlippedVertically == 0 {
		t.Error("bottom-up source not flagged as flipped")
	}
}

func TestRoundtrip24(t *testing.T) {
	src := core.NewImage()
	src.Width = 3
	src.Height = 2
	src.PixelFormat = core.PixelFormatBPP24RGB
	src.BytesPerLine = core.MinBytesPerLine(3, core.PixelFormatBPP24RGB)
	src.Pixels = []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9,
		100, 110, 120, 130, 140, 150, 160, 170, 180,
	}

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

	frames := loadAll(t, out)
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	got := frames[0]
	if got.Width != src.Width || got.Height != src.Height {
		t.Fatalf("geometry %dx%d", got.Width, got.Height)
	}
	// Compare pixel content row by row; strides differ (saved rows are
	// padded to 4 bytes).
	for y := 0; y < src.Height; y++ {
		a := src.Pixels[y*src.BytesPerLine : y*src.BytesPerLine+9]
		b := got.Pixels[y*got.BytesPerLine : y*got.BytesPerLine+9]
		if !bytes.Equal(a, b) {
			t.Errorf("row %d: got %v, want %v", y, b, a)
		}
	}
}

func TestRoundtripIndexed(t *testing.T) {
	src := core.NewImage()
	src.Width = 4
	src.Height = 2
	src.PixelFormat = core.PixelFormatBPP8Indexed
	src.BytesPerLine = 4
	src.Pixels = []byte{0, 1, 1, 0, 1, 0, 0, 1}
	src.Palette = &core.Palette{
		PixelFormat: core.PixelFormatBPP24RGB,
		Data:        []byte{255, 0, 0, 0, 0, 255},
		ColorCount:  2,
	}

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

	got := loadAll(t, out)[0]
	if got.PixelFormat != core.PixelFormatBPP8Indexed {
		t.Fatalf("pixel format %s", got.PixelFormat)
	}
	if got.Palette == nil || got.Palette.ColorCount != 2 {
		t.Fatalf("palette %+v", got.Palette)
	}
	r, g, b, _, err := got.Palette.ColorRGBA(1)
	if err != nil || r != 0 || g != 0 || b != 255 {
		t.Errorf("palette entry 1: %d,%d,%d %v", r, g, b, err)
	}
	if !bytes.Equal(got.Pixels, src.Pixels) {
		t.Errorf("indices: got %v, want %v", got.Pixels, src.Pixels)
	}
}

func TestRejectsRLE(t *testing.T) {
	data := buildBMP24(t, 1, 1, [][]byte{{1, 2, 3}})
	binary.LittleEndian.PutUint32(data[fileHeaderSize+16:], compressionRLE8)

	l, err := driver.NewLoader(NewDescriptor(), sio.ReadMemory(data), core.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Stop()
	if err := l.Start(); !codecerrors.Is(err, codecerrors.UnsupportedCompression) {
		t.Errorf("want UNSUPPORTED_COMPRESSION, got %v", err)
	}
}
