// Package compose implements the animation canvas shared by animation-aware
// codecs.  A Canvas persists across the frames of one decode; each frame's
// sub-rectangle fragment is disposed and blended onto it to produce the final
// full-size output frame.
package compose

import (
	codecerrors "github.com/lateen-io/lateen/errors"
)

// Dispose says how a frame's pixels are cleared before the next frame is
// composed.
type Dispose int

const (
	DisposeNone Dispose = iota
	DisposeBackground
	DisposePrevious
)

// Blend says how a frame's fragment combines with the canvas.
type Blend int

const (
	// BlendOver alpha-composites the fragment over the canvas.
	BlendOver Blend = iota
	// NoBlend overwrites the canvas sub-rectangle with the fragment.
	NoBlend
)

// Rect is a frame's sub-rectangle on the canvas.
type Rect struct {
	X, Y, W, H int
}

// RGBA is a straight-alpha 32-bit color.
type RGBA [4]byte

// Transparent is the all-zero background.
var Transparent = RGBA{}

const bytesPerPixel = 4

// Canvas is the persistent BPP32_RGBA buffer animation frames composite onto.
type Canvas struct {
	Width      int
	Height     int
	Background RGBA
	Pixels     []byte

	started     bool
	prev        Rect
	prevDispose Dispose
	prevBlend   Blend
	snapshot    []byte // canvas before the previous frame, when it disposes to previous
}

// NewCanvas allocates a w x h canvas.
func NewCanvas(w, h int, background RGBA) (*Canvas, error) {
	if w <= 0 || h <= 0 {
		return nil, codecerrors.Newf(codecerrors.IncorrectImageDimensions, "compose.canvas", "%dx%d", w, h)
	}
	return &Canvas{
		Width:      w,
		Height:     h,
		Background: background,
		Pixels:     make([]byte, w*h*bytesPerPixel),
	}, nil
}

// BytesPerLine returns the canvas row stride.
func (c *Canvas) BytesPerLine() int { return c.Width * bytesPerPixel }

// Advance prepares the canvas for the next frame: on the first call it fills
// the whole canvas with the background; on later calls it applies the
// previous frame's disposal.  The frame's rect, dispose, and blend are then
// recorded for the Compose call and the next Advance.
func (c *Canvas) Advance(rect Rect, dispose Dispose, blend Blend) error {
	if rect.X < 0 || rect.Y < 0 || rect.W <= 0 || rect.H <= 0 ||
		rect.X+rect.W > c.Width || rect.Y+rect.H > c.Height {
		return codecerrors.Newf(codecerrors.BrokenImage, "compose.advance",
			"frame rect %+v exceeds %dx%d canvas", rect, c.Width, c.Height)
	}

	if !c.started {
		c.started = true
		c.fill(Rect{0, 0, c.Width, c.Height}, c.Background)
	} else {
		switch c.prevDispose {
		case DisposeNone:
		case DisposeBackground:
			c.fill(c.prev, c.Background)
		case DisposePrevious:
			copy(c.Pixels, c.snapshot)
		default:
			return codecerrors.Newf(codecerrors.BrokenImage, "compose.advance",
				"unknown disposal method %d", c.prevDispose)
		}
	}

	// A frame disposing to previous needs the canvas state from before it was
	// drawn.
	if dispose == DisposePrevious {
		if c.snapshot == nil {
			c.snapshot = make([]byte, len(c.Pixels))
		}
		copy(c.snapshot, c.Pixels)
	}

	c.prev = rect
	c.prevDispose = dispose
	c.prevBlend = blend
	return nil
}

// Compose draws the current frame's fragment onto the canvas.  The fragment
// holds rect.W x rect.H straight-alpha RGBA pixels with no padding, where
// rect is the rectangle passed to the preceding Advance.
func (c *Canvas) Compose(fragment []byte) error {
	if !c.started {
		return codecerrors.New(codecerrors.InvalidArgument, "compose.compose")
	}
	rect := c.prev
	if len(fragment) < rect.W*rect.H*bytesPerPixel {
		return codecerrors.Newf(codecerrors.BrokenImage, "compose.compose",
			"fragment %d bytes, need %d", len(fragment), rect.W*rect.H*bytesPerPixel)
	}

	stride := c.BytesPerLine()
	fragStride := rect.W * bytesPerPixel
	for row := 0; row < rect.H; row++ {
		dst := c.Pixels[(rect.Y+row)*stride+rect.X*bytesPerPixel:]
		src := fragment[row*fragStride : (row+1)*fragStride]
		switch c.prevBlend {
		case NoBlend:
			copy(dst[:fragStride], src)
		case BlendOver:
			blendOver(dst, src, rect.W)
		default:
			return codecerrors.Newf(codecerrors.BrokenImage, "compose.compose",
				"unknown blend method %d", c.prevBlend)
		}
	}
	return nil
}

// CopyTo copies the full canvas into dst, which must hold at least
// Width*Height*4 bytes.
func (c *Canvas) CopyTo(dst []byte) error {
	if len(dst) < len(c.Pixels) {
		return codecerrors.Newf(codecerrors.BrokenImage, "compose.copy",
			"destination %d bytes, need %d", len(dst), len(c.Pixels))
	}
	copy(dst, c.Pixels)
	return nil
}

func (c *Canvas) fill(rect Rect, color RGBA) {
	stride := c.BytesPerLine()
	for row := 0; row < rect.H; row++ {
		off := (rect.Y+row)*stride + rect.X*bytesPerPixel
		for x := 0; x < rect.W; x++ {
			copy(c.Pixels[off+x*bytesPerPixel:], color[:])
		}
	}
}

// blendOver composites count straight-alpha RGBA pixels of src over dst:
// out = src * src.a + dst * (1 - src.a), with 8-bit normalization.
func blendOver(dst, src []byte, count int) {
	for i := 0; i < count; i++ {
		o := i * bytesPerPixel
		sa := uint32(src[o+3])
		if sa == 255 {
			copy(dst[o:o+bytesPerPixel], src[o:o+bytesPerPixel])
			continue
		}
		if sa == 0 {
			continue
		}
		da := uint32(dst[o+3])
		for ch := 0; ch < 3; ch++ {
			s := uint32(src[o+ch])
			d := uint32(dst[o+ch])
			dst[o+ch] = byte((s*sa + d*(255-sa) + 127) / 255)
		}
		dst[o+3] = byte(sa + da*(255-sa)/255)
	}
}
