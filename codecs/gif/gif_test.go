package gif

import (
	"bytes"
	"image"
	"image/color"
	stdgif "image/gif"
	"testing"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/driver"
	"github.com/lateen-io/lateen/sio"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

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

func rgbaAt(img *core.Image, x, y int) [4]byte {
	var p [4]byte
	copy(p[:], img.Pixels[y*img.BytesPerLine+x*4:])
	return p
}

func TestSingleFrameLoadsIndexed(t *testing.T) {
	frame := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{red, green})
	frame.Pix = []byte{0, 1, 1, 0}

	var buf bytes.Buffer
	if err := stdgif.EncodeAll(&buf, &stdgif.GIF{
		Image: []*image.Paletted{frame},
		Delay: []int{0},
	}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	frames := loadAll(t, buf.Bytes())
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	img := frames[0]
	if img.PixelFormat != core.PixelFormatBPP8Indexed {
		t.Errorf("pixel format %s", img.PixelFormat)
	}
	if img.Delay != -1 {
		t.Errorf("still image delay %d, want -1", img.Delay)
	}
	if img.Palette == nil || img.Palette.ColorCount != 2 {
		t.Fatalf("palette %+v", img.Palette)
	}
	if !bytes.Equal(img.Pixels[:2], []byte{0, 1}) {
		t.Errorf("indices %v", img.Pixels)
	}
	if img.SourceImage == nil || img.SourceImage.Compression != core.CompressionLZW {
		t.Errorf("source image %+v", img.SourceImage)
	}
}

func TestAnimationComposited(t *testing.T) {
	// Frame 1 covers the whole 4x4 canvas in red and disposes to background;
	// frame 2 is a 2x2 green rect in the bottom-right corner.
	frame1 := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{red})
	frame2 := image.NewPaletted(image.Rect(2, 2, 4, 4), color.Palette{green})

	var buf bytes.Buffer
	if err := stdgif.EncodeAll(&buf, &stdgif.GIF{
		Image:    []*image.Paletted{frame1, frame2},
		Delay:    []int{0, 5},
		Disposal: []byte{stdgif.DisposalBackground, stdgif.DisposalNone},
		Config: image.Config{
			Width:  4,
			Height: 4,
		},
	}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	frames := loadAll(t, buf.Bytes())
	if len(frames) != 2 {
		t.Fatalf("got %d frames", len(frames))
	}

	first, second := frames[0], frames[1]
	if first.PixelFormat != core.PixelFormatBPP32RGBA || first.Width != 4 || first.Height != 4 {
		t.Fatalf("frame 1 shape: %s %dx%d", first.PixelFormat, first.Width, first.Height)
	}

	// Zero source delay falls back to 100 ms; 5cs becomes 50 ms.
	if first.Delay != 100 {
		t.Errorf("frame 1 delay %d, want 100", first.Delay)
	}
	if second.Delay != 50 {
		t.Errorf("frame 2 delay %d, want 50", second.Delay)
	}

	if got := rgbaAt(first, 0, 0); got != [4]byte{255, 0, 0, 255} {
		t.Errorf("frame 1 (0,0) = %v, want red", got)
	}
	if got := rgbaAt(second, 2, 2); got != [4]byte{0, 255, 0, 255} {
		t.Errorf("frame 2 (2,2) = %v, want green", got)
	}
	// Frame 1 disposed to background, so its red pixels are gone in frame 2.
	if got := rgbaAt(second, 0, 0); got == [4]byte{255, 0, 0, 255} {
		t.Error("frame 2 (0,0) still red after dispose-to-background")
	}
}

func TestRoundtripIndexed(t *testing.T) {
	src := core.NewImage()
	src.Width = 2
	src.Height = 2
	src.PixelFormat = core.PixelFormatBPP8Indexed
	src.BytesPerLine = 2
	src.Pixels = []byte{0, 1, 1, 0}
	src.Palette = &core.Palette{
		PixelFormat: core.PixelFormatBPP32RGBA,
		Data:        []byte{255, 0, 0, 255, 0, 255, 0, 255},
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

	frames := loadAll(t, out)
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	got := frames[0]
	if got.PixelFormat != core.PixelFormatBPP8Indexed {
		t.Fatalf("pixel format %s", got.PixelFormat)
	}
	if !bytes.Equal(got.Pixels[:4], src.Pixels) {
		t.Errorf("indices: got %v, want %v", got.Pixels[:4], src.Pixels)
	}
}
