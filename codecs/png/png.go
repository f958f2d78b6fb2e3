// Package png implements a PNG codec over the standard library decoder.
package png

import (
	"bytes"
	"image"
	"image/color"
	stdpng "image/png"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
	"github.com/lateen-io/lateen/utils"
)

// NewDescriptor returns the registry descriptor for the built-in PNG codec.
func NewDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "png",
		Version:      "1.0.0",
		Layout:       core.CodecLayoutVersion,
		Priority:     0,
		Description:  "Portable Network Graphics",
		Extensions:   []string{"png"},
		MimeTypes:    []string{"image/png"},
		MagicNumbers: []string{"89 50 4e 47 0d 0a 1a 0a"},
		Impl:         &codec{},
	}
}

// Register adds the PNG codec to r.
func Register(r *registry.Registry) error { return r.Register(NewDescriptor()) }

type codec struct{}

type loadState struct {
	options core.LoadOptions
	data    []byte
	cfg     image.Config
	frame   int
}

func (c *codec) LoadInit(s sio.Stream, options core.LoadOptions) (core.LoadState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "png.load_init")
	}
	buf, err := utils.DrainReader(sio.Reader(s), 32*1024)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "png.load_init", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	cfg, err := stdpng.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.BrokenImage, "png.load_init", err)
	}
	return &loadState{options: options, data: data, cfg: cfg}, nil
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "png.load_seek_next_frame")
	}
	if st.frame > 0 {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "png.load_seek_next_frame")
	}
	st.frame++

	img := core.NewImage()
	img.Width = st.cfg.Width
	img.Height = st.cfg.Height

	switch model := st.cfg.ColorModel.(type) {
	case color.Palette:
		img.PixelFormat = core.PixelFormatBPP8Indexed
		img.Palette = paletteFromColors(model)
	default:
		switch st.cfg.ColorModel {
		case color.GrayModel:
			img.PixelFormat = core.PixelFormatBPP8Grayscale
		case color.Gray16Model:
			img.PixelFormat = core.PixelFormatBPP16Grayscale
		default:
			img.PixelFormat = core.PixelFormatBPP32RGBA
		}
	}
	img.BytesPerLine = core.MinBytesPerLine(img.Width, img.PixelFormat)

	if st.options.IOOptions&core.IOOptionSourceImage != 0 {
		img.SourceImage = &core.SourceImage{
			PixelFormat: img.PixelFormat,
			Compression: core.CompressionDeflate,
		}
		// IHDR interlace method byte: 1 is Adam7.
		if len(st.data) > 28 && st.data[28] == 1 {
			img.SourceImage.Properties |= core.PropertyInterlaced
		}
	}
	return img, nil
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

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "png.load_frame")
	}
	decoded, err := stdpng.Decode(bytes.NewReader(st.data))
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "png.load_frame", err)
	}

	switch src := decoded.(type) {
	case *image.Paletted:
		if img.PixelFormat == core.PixelFormatBPP8Indexed {
			copyRows(img, src.Pix, src.Stride)
			return nil
		}
	case *image.Gray:
		if img.PixelFormat == core.PixelFormatBPP8Grayscale {
			copyRows(img, src.Pix, src.Stride)
			return nil
		}
	case *image.Gray16:
		if img.PixelFormat == core.PixelFormatBPP16Grayscale {
			copyRows(img, src.Pix, src.Stride)
			return nil
		}
	}
	if img.PixelFormat != core.PixelFormatBPP32RGBA {
		return codecerrors.Newf(codecerrors.BrokenImage, "png.load_frame",
			"decoded form does not match announced pixel format %s", img.PixelFormat)
	}
	fillRGBA(img, decoded)
	return nil
}

func (c *codec) LoadFinish(state core.LoadState) error {
	if _, ok := state.(*loadState); !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "png.load_finish")
	}
	return nil
}

type saveState struct {
	stream sio.Stream
	frame  int
}

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "png.save_init")
	}
	if options.Compression != core.CompressionUnknown && options.Compression != core.CompressionDeflate {
		return nil, codecerrors.Newf(codecerrors.UnsupportedCompression, "png.save_init",
			"compression %s", options.Compression)
	}
	return &saveState{stream: s}, nil
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "png.save_seek_next_frame")
	}
	if st.frame > 0 {
		return codecerrors.New(codecerrors.NoMoreFrames, "png.save_seek_next_frame")
	}
	st.frame++
	return nil
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "png.save_frame")
	}
	out, err := toStdImage(img)
	if err != nil {
		return err
	}
	if err := stdpng.Encode(sio.Writer(st.stream), out); err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "png.save_frame", err)
	}
	return nil
}

func (c *codec) SaveFinish(state core.SaveState) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "png.save_finish")
	}
	return st.stream.Flush()
}

// ── shared pixel plumbing ─────────────────────────────────────────────────────

func copyRows(img *core.Image, pix []byte, stride int) {
	rowBytes := core.MinBytesPerLine(img.Width, img.PixelFormat)
	for y := 0; y < img.Height; y++ {
		copy(img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+rowBytes], pix[y*stride:])
	}
}

func fillRGBA(img *core.Image, decoded image.Image) {
	bounds := decoded.Bounds()
	for y := 0; y < img.Height; y++ {
		row := img.Pixels[y*img.BytesPerLine:]
		for x := 0; x < img.Width; x++ {
			c := color.NRGBAModel.Convert(decoded.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			row[x*4+0] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = c.A
		}
	}
}

func toStdImage(img *core.Image) (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.PixelFormat {
	case core.PixelFormatBPP8Grayscale:
		out := image.NewGray(rect)
		copyOut(out.Pix, out.Stride, img)
		return out, nil
	case core.PixelFormatBPP16Grayscale:
		out := image.NewGray16(rect)
		copyOut(out.Pix, out.Stride, img)
		return out, nil
	case core.PixelFormatBPP8Indexed:
		pal, err := stdPalette(img.Palette)
		if err != nil {
			return nil, err
		}
		out := image.NewPaletted(rect, pal)
		copyOut(out.Pix, out.Stride, img)
		return out, nil
	case core.PixelFormatBPP24RGB:
		out := image.NewNRGBA(rect)
		for y := 0; y < img.Height; y++ {
			src := img.Pixels[y*img.BytesPerLine:]
			dst := out.Pix[y*out.Stride:]
			for x := 0; x < img.Width; x++ {
				dst[x*4+0] = src[x*3+0]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 255
			}
		}
		return out, nil
	case core.PixelFormatBPP32RGBA:
		out := image.NewNRGBA(rect)
		copyOut(out.Pix, out.Stride, img)
		return out, nil
	}
	return nil, codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "png.save_frame",
		"pixel format %s", img.PixelFormat)
}

func copyOut(pix []byte, stride int, img *core.Image) {
	rowBytes := core.MinBytesPerLine(img.Width, img.PixelFormat)
	for y := 0; y < img.Height; y++ {
		copy(pix[y*stride:], img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+rowBytes])
	}
}

func stdPalette(p *core.Palette) (color.Palette, error) {
	out := make(color.Palette, p.ColorCount)
	for i := 0; i < p.ColorCount; i++ {
		r, g, b, a, err := p.ColorRGBA(i)
		if err != nil {
			return nil, err
		}
		out[i] = color.NRGBA{R: r, G: g, B: b, A: a}
	}
	return out, nil
}
