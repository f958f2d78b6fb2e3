package png

import (
	"bytes"
	"image"
	"image/color"
	stdpng "image/png"
	"testing"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/driver"
	"github.com/lateen-io/lateen/sio"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := stdpng.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func loadSingle(t *testing.T, data []byte) *core.Image {
	t.Helper()
	l, err := driver.NewLoader(NewDescriptor(), sio.ReadMemory(data), core.DefaultLoadOptions())
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
	img, err := l.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestLoadRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 128})

	img := loadSingle(t, encodePNG(t, src))
	if img.PixelFormat != core.PixelFormatBPP32RGBA {
		t.Fatalf("pixel format %s", img.PixelFormat)
	}
	want := []byte{10, 20, 30, 255, 40, 50, 60, 128}
	if !bytes.Equal(img.Pixels, want) {
		t.Errorf("pixels: got %v, want %v", img.Pixels, want)
	}
	if img.Delay != -1 {
		t.Errorf("delay %d", img.Delay)
	}
	if img.SourceImage == nil || img.SourceImage.Compression != core.CompressionDeflate {
		t.Errorf("source image %+v", img.SourceImage)
	}
}

func TestLoadGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.Pix = []byte{0, 128, 255}

	img := loadSingle(t, encodePNG(t, src))
	if img.PixelFormat != core.PixelFormatBPP8Grayscale {
		t.Fatalf("pixel format %s", img.PixelFormat)
	}
	if !bytes.Equal(img.Pixels[:3], []byte{0, 128, 255}) {
		t.Errorf("pixels %v", img.Pixels)
	}
}

func TestLoadPaletted(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 255, A: 255},
		color.NRGBA{G: 255, A: 255},
	}
	src := image.NewPaletted(image.Rect(0, 0, 2, 2), pal)
	src.Pix = []byte{0, 1, 1, 0}

	img := loadSingle(t, encodePNG(t, src))
	if img.PixelFormat != core.PixelFormatBPP8Indexed {
		t.Fatalf("pixel format %s", img.PixelFormat)
	}
	if img.Palette == nil || img.Palette.ColorCount != 2 {
		t.Fatalf("palette %+v", img.Palette)
	}
	r, _, _, a, err := img.Palette.ColorRGBA(0)
	if err != nil || r != 255 || a != 255 {
		t.Errorf("palette entry 0: %d %d %v", r, a, err)
	}
	if !bytes.Equal(img.Pixels[:2], []byte{0, 1}) {
		t.Errorf("indices %v", img.Pixels)
	}
}

// A lossless save/load cycle reproduces the pixels exactly.
func TestRoundtrip(t *testing.T) {
	src := core.NewImage()
	src.Width = 2
	src.Height = 2
	src.PixelFormat = core.PixelFormatBPP32RGBA
	src.BytesPerLine = 8
	src.Pixels = []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 128,
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

	got := loadSingle(t, out)
	if !bytes.Equal(got.Pixels, src.Pixels) {
		t.Errorf("pixels: got %v, want %v", got.Pixels, src.Pixels)
	}
}

func TestSecondSeekReturnsNoMoreFrames(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	data := encodePNG(t, src)

	l, err := driver.NewLoader(NewDescriptor(), sio.ReadMemory(data), core.DefaultLoadOptions())
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
	if _, err := l.ReadFrame(); err != nil {
		t.Fatal(err)
	}
	if _, err := l.NextFrame(); !codecerrors.IsNoMoreFrames(err) {
		t.Errorf("want NO_MORE_FRAMES, got %v", err)
	}
}

func TestBrokenInput(t *testing.T) {
	l, err := driver.NewLoader(NewDescriptor(), sio.ReadMemory([]byte("not a png")), core.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Stop()
	if err := l.Start(); !codecerrors.Is(err, codecerrors.BrokenImage) {
		t.Errorf("want BROKEN_IMAGE, got %v", err)
	}
}
