// Package gif implements a GIF codec.  Animated images are composited
// through the shared animation canvas; single-frame images load as indexed
// pixels with their palette.
package gif

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	stdgif "image/gif"

	"github.com/lateen-io/lateen/compose"
	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
	"github.com/lateen-io/lateen/utils"
)

// NewDescriptor returns the registry descriptor for the built-in GIF codec.
func NewDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "gif",
		Version:      "1.0.0",
		Layout:       core.CodecLayoutVersion,
		Priority:     0,
		Description:  "Graphics Interchange Format",
		Extensions:   []string{"gif"},
		MimeTypes:    []string{"image/gif"},
		MagicNumbers: []string{"47 49 46 38 39 61", "47 49 46 38 37 61"},
		Impl:         &codec{},
	}
}

// Register adds the GIF codec to r.
func Register(r *registry.Registry) error { return r.Register(NewDescriptor()) }

type codec struct{}

type loadState struct {
	options core.LoadOptions
	gif     *stdgif.GIF
	canvas  *compose.Canvas
	frame   int
}

func (c *codec) LoadInit(s sio.Stream, options core.LoadOptions) (core.LoadState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "gif.load_init")
	}
	buf, err := utils.DrainReader(sio.Reader(s), 32*1024)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "gif.load_init", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	g, err := stdgif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.UnderlyingCodec, "gif.load_init", err)
	}
	if len(g.Image) == 0 {
		return nil, codecerrors.New(codecerrors.BrokenImage, "gif.load_init")
	}

	st := &loadState{options: options, gif: g}
	if len(g.Image) > 1 {
		st.canvas, err = compose.NewCanvas(g.Config.Width, g.Config.Height, backgroundColor(g))
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

// backgroundColor resolves the background index against the global palette.
// A transparent background is used when there is no usable global entry.
func backgroundColor(g *stdgif.GIF) compose.RGBA {
	global, ok := g.Config.ColorModel.(color.Palette)
	if !ok || int(g.BackgroundIndex) >= len(global) {
		return compose.Transparent
	}
	c := color.NRGBAModel.Convert(global[g.BackgroundIndex]).(color.NRGBA)
	return compose.RGBA{c.R, c.G, c.B, c.A}
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "gif.load_seek_next_frame")
	}
	if st.frame >= len(st.gif.Image) {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "gif.load_seek_next_frame")
	}

	if st.canvas == nil {
		return st.seekStill()
	}
	return st.seekAnimated()
}

// seekStill announces the single frame as indexed pixels.
func (st *loadState) seekStill() (*core.Image, error) {
	frame := st.gif.Image[0]
	bounds := frame.Bounds()

	img := core.NewImage()
	img.Width = bounds.Dx()
	img.Height = bounds.Dy()
	img.PixelFormat = core.PixelFormatBPP8Indexed
	img.BytesPerLine = core.MinBytesPerLine(img.Width, img.PixelFormat)
	img.Palette = paletteFromColors(frame.Palette)
	st.fillSource(img)
	return img, nil
}

func (st *loadState) seekAnimated() (*core.Image, error) {
	frame := st.gif.Image[st.frame]
	bounds := frame.Bounds()
	rect := compose.Rect{X: bounds.Min.X, Y: bounds.Min.Y, W: bounds.Dx(), H: bounds.Dy()}

	if err := st.canvas.Advance(rect, disposal(st.gif, st.frame), compose.BlendOver); err != nil {
		return nil, err
	}

	img := core.NewImage()
	img.Width = st.canvas.Width
	img.Height = st.canvas.Height
	img.PixelFormat = core.PixelFormatBPP32RGBA
	img.BytesPerLine = st.canvas.BytesPerLine()

	// Centiseconds on disk; fall back to 100 ms like other animation codecs.
	delay := st.gif.Delay[st.frame] * 10
	if delay <= 0 {
		delay = 100
	}
	img.Delay = delay

	st.fillSource(img)
	return img, nil
}

func (st *loadState) fillSource(img *core.Image) {
	if st.options.IOOptions&core.IOOptionSourceImage == 0 {
		return
	}
	img.SourceImage = &core.SourceImage{
		PixelFormat: core.PixelFormatBPP8Indexed,
		Compression: core.CompressionLZW,
	}
}

func disposal(g *stdgif.GIF, frame int) compose.Dispose {
	if frame >= len(g.Disposal) {
		return compose.DisposeNone
	}
	switch g.Disposal[frame] {
	case stdgif.DisposalBackground:
		return compose.DisposeBackground
	case stdgif.DisposalPrevious:
		return compose.DisposePrevious
	}
	return compose.DisposeNone
}

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "gif.load_frame")
	}
	frame := st.gif.Image[st.frame]
	st.frame++

	if st.canvas == nil {
		rowBytes := core.MinBytesPerLine(img.Width, img.PixelFormat)
		for y := 0; y < img.Height; y++ {
			copy(img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+rowBytes], frame.Pix[y*frame.Stride:])
		}
		return nil
	}

	fragment := fragmentRGBA(frame)
	if err := st.canvas.Compose(fragment); err != nil {
		return err
	}
	return st.canvas.CopyTo(img.Pixels)
}

// fragmentRGBA expands the paletted fragment to straight-alpha RGBA; the
// transparent index carries alpha 0 and is skipped by the blend.
func fragmentRGBA(frame *image.Paletted) []byte {
	bounds := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := frame.Pix[y*frame.Stride+x]
			c := color.NRGBAModel.Convert(frame.Palette[idx]).(color.NRGBA)
			o := (y*w + x) * 4
			out[o+0] = c.R
			out[o+1] = c.G
			out[o+2] = c.B
			out[o+3] = c.A
		}
	}
	return out
}

func (c *codec) LoadFinish(state core.LoadState) error {
	if _, ok := state.(*loadState); !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "gif.load_finish")
	}
	return nil
}

func paletteFromColors(p color.Palette) *core.Palette {
	data := make([]byte, 0, len(p)*4)
	for _, entry := range p {
		c := color.NRGBAModel.Convert(entry).(color.NRGBA)
		data = append(data, c.R, c.G, c.B, c.A)
	}
	return &core.Palette{
		PixelFormat: core.PixelFormatBPP32RGBA,
		Data:        data,
		ColorCount:  len(p),
	}
}

// ── save path ─────────────────────────────────────────────────────────────────

type saveState struct {
	stream sio.Stream
	frames []*image.Paletted
	delays []int
}

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "gif.save_init")
	}
	if options.Compression != core.CompressionUnknown && options.Compression != core.CompressionLZW {
		return nil, codecerrors.Newf(codecerrors.UnsupportedCompression, "gif.save_init",
			"compression %s", options.Compression)
	}
	return &saveState{stream: s}, nil
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	if _, ok := state.(*saveState); !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "gif.save_seek_next_frame")
	}
	return nil
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "gif.save_frame")
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	var frame *image.Paletted
	switch img.PixelFormat {
	case core.PixelFormatBPP8Indexed:
		pal := make(color.Palette, img.Palette.ColorCount)
		for i := range pal {
			r, g, b, a, err := img.Palette.ColorRGBA(i)
			if err != nil {
				return err
			}
			pal[i] = color.NRGBA{R: r, G: g, B: b, A: a}
		}
		frame = image.NewPaletted(rect, pal)
		rowBytes := core.MinBytesPerLine(img.Width, img.PixelFormat)
		for y := 0; y < img.Height; y++ {
			copy(frame.Pix[y*frame.Stride:], img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+rowBytes])
		}
	case core.PixelFormatBPP24RGB, core.PixelFormatBPP32RGBA:
		frame = image.NewPaletted(rect, palette.Plan9)
		draw.FloydSteinberg.Draw(frame, rect, rgbaImage(img), image.Point{})
	default:
		return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "gif.save_frame",
			"pixel format %s", img.PixelFormat)
	}

	delay := 0
	if img.Delay > 0 {
		delay = img.Delay / 10
	}
	st.frames = append(st.frames, frame)
	st.delays = append(st.delays, delay)
	return nil
}

func rgbaImage(img *core.Image) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	out := image.NewNRGBA(rect)
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.BytesPerLine:]
		dst := out.Pix[y*out.Stride:]
		if img.PixelFormat == core.PixelFormatBPP32RGBA {
			copy(dst[:img.Width*4], src[:img.Width*4])
			continue
		}
		for x := 0; x < img.Width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 255
		}
	}
	return out
}

func (c *codec) SaveFinish(state core.SaveState) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "gif.save_finish")
	}
	if len(st.frames) == 0 {
		return codecerrors.New(codecerrors.InvalidArgument, "gif.save_finish")
	}
	out := &stdgif.GIF{Image: st.frames, Delay: st.delays}
	if err := stdgif.EncodeAll(sio.Writer(st.stream), out); err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "gif.save_finish", err)
	}
	return st.stream.Flush()
}
