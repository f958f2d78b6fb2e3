package compose

import (
	"bytes"
	"testing"
)

func pixelAt(c *Canvas, x, y int) RGBA {
	off := y*c.BytesPerLine() + x*4
	var p RGBA
	copy(p[:], c.Pixels[off:off+4])
	return p
}

func solidFragment(w, h int, color RGBA) []byte {
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		copy(out[i*4:], color[:])
	}
	return out
}

var (
	red   = RGBA{255, 0, 0, 255}
	green = RGBA{0, 255, 0, 255}
	blue  = RGBA{0, 0, 255, 255}
)

// Two frames on a transparent 4x4 canvas: a red 2x2 rect at the origin that
// disposes to background, then a green 2x2 rect in the opposite corner.
func TestDisposeBackground(t *testing.T) {
	c, err := NewCanvas(4, 4, Transparent)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Advance(Rect{0, 0, 2, 2}, DisposeBackground, NoBlend); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(solidFragment(2, 2, red)); err != nil {
		t.Fatal(err)
	}
	if pixelAt(c, 0, 0) != red || pixelAt(c, 1, 1) != red {
		t.Error("frame 1: top-left quadrant not red")
	}
	if pixelAt(c, 2, 2) != Transparent {
		t.Error("frame 1: rest of canvas not transparent")
	}

	if err := c.Advance(Rect{2, 2, 2, 2}, DisposeNone, NoBlend); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(solidFragment(2, 2, green)); err != nil {
		t.Fatal(err)
	}
	if pixelAt(c, 0, 0) != Transparent || pixelAt(c, 1, 1) != Transparent {
		t.Error("frame 2: previous rect not disposed to background")
	}
	if pixelAt(c, 2, 2) != green || pixelAt(c, 3, 3) != green {
		t.Error("frame 2: bottom-right quadrant not green")
	}
}

func TestDisposePrevious(t *testing.T) {
	c, err := NewCanvas(2, 2, Transparent)
	if err != nil {
		t.Fatal(err)
	}

	// Frame 1 paints everything red and stays.
	if err := c.Advance(Rect{0, 0, 2, 2}, DisposeNone, NoBlend); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(solidFragment(2, 2, red)); err != nil {
		t.Fatal(err)
	}

	// Frame 2 paints blue but disposes to the previous canvas.
	if err := c.Advance(Rect{0, 0, 2, 2}, DisposePrevious, NoBlend); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(solidFragment(2, 2, blue)); err != nil {
		t.Fatal(err)
	}
	if pixelAt(c, 0, 0) != blue {
		t.Error("frame 2 not drawn")
	}

	// Frame 3: the canvas must be restored to all red before composing.
	if err := c.Advance(Rect{0, 0, 1, 1}, DisposeNone, NoBlend); err != nil {
		t.Fatal(err)
	}
	if pixelAt(c, 1, 1) != red {
		t.Error("dispose-previous did not restore the pre-frame canvas")
	}
}

func TestBlendOver(t *testing.T) {
	c, err := NewCanvas(1, 1, RGBA{0, 0, 0, 255})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Advance(Rect{0, 0, 1, 1}, DisposeNone, BlendOver); err != nil {
		t.Fatal(err)
	}
	// Half-transparent white over opaque black.
	if err := c.Compose([]byte{255, 255, 255, 128}); err != nil {
		t.Fatal(err)
	}
	got := pixelAt(c, 0, 0)
	// out = 255*128/255 + 0*(1-128/255) = 128, with rounding.
	for ch := 0; ch < 3; ch++ {
		if got[ch] < 127 || got[ch] > 129 {
			t.Errorf("channel %d: got %d", ch, got[ch])
		}
	}
	if got[3] != 255 {
		t.Errorf("alpha: got %d", got[3])
	}
}

func TestBlendOverFullyOpaqueAndTransparent(t *testing.T) {
	c, err := NewCanvas(2, 1, Transparent)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Advance(Rect{0, 0, 2, 1}, DisposeNone, NoBlend); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(solidFragment(2, 1, red)); err != nil {
		t.Fatal(err)
	}

	if err := c.Advance(Rect{0, 0, 2, 1}, DisposeNone, BlendOver); err != nil {
		t.Fatal(err)
	}
	frag := append(append([]byte{}, green[:]...), 0, 0, 0, 0) // opaque green, then transparent
	if err := c.Compose(frag); err != nil {
		t.Fatal(err)
	}
	if pixelAt(c, 0, 0) != green {
		t.Error("opaque source must replace destination")
	}
	if pixelAt(c, 1, 0) != red {
		t.Error("transparent source must keep destination")
	}
}

func TestFirstFrameFillsBackground(t *testing.T) {
	bg := RGBA{9, 8, 7, 255}
	c, err := NewCanvas(3, 3, bg)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Advance(Rect{1, 1, 1, 1}, DisposeNone, NoBlend); err != nil {
		t.Fatal(err)
	}
	if err := c.Compose(solidFragment(1, 1, blue)); err != nil {
		t.Fatal(err)
	}
	if pixelAt(c, 0, 0) != bg || pixelAt(c, 2, 2) != bg {
		t.Error("background fill missing")
	}
	if pixelAt(c, 1, 1) != blue {
		t.Error("fragment not drawn")
	}

	out := make([]byte, len(c.Pixels))
	if err := c.CopyTo(out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, c.Pixels) {
		t.Error("CopyTo mismatch")
	}
}

func TestAdvanceRejectsOutOfBounds(t *testing.T) {
	c, err := NewCanvas(2, 2, Transparent)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Advance(Rect{1, 1, 2, 2}, DisposeNone, NoBlend); err == nil {
		t.Error("out-of-bounds rect accepted")
	}
}
