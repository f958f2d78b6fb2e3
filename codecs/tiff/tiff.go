// Package tiff implements a single-page TIFF codec over golang.org/x/image.
package tiff

import (
	"bytes"
	"image"
	"image/color"

	xtiff "golang.org/x/image/tiff"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
	"github.com/lateen-io/lateen/utils"
)

// NewDescriptor returns the registry descriptor for the built-in TIFF codec.
func NewDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "tiff",
		Version:      "1.0.0",
		Layout:       core.CodecLayoutVersion,
		Priority:     0,
		Description:  "Tagged Image File Format",
		Extensions:   []string{"tif", "tiff"},
		MimeTypes:    []string{"image/tiff"},
		MagicNumbers: []string{"49 49 2a 00", "4d 4d 00 2a"},
		Impl:         &codec{},
	}
}

// Register adds the TIFF codec to r.
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
		return nil, codecerrors.New(codecerrors.InvalidIO, "tiff.load_init")
	}
	buf, err := utils.DrainReader(sio.Reader(s), 32*1024)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "tiff.load_init", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	cfg, err := xtiff.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.BrokenImage, "tiff.load_init", err)
	}
	return &loadState{options: options, data: data, cfg: cfg}, nil
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "tiff.load_seek_next_frame")
	}
	if st.frame > 0 {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "tiff.load_seek_next_frame")
	}
	st.frame++

	img := core.NewImage()
	img.Width = st.cfg.Width
	img.Height = st.cfg.Height
	switch st.cfg.ColorModel {
	case color.GrayModel:
		img.PixelFormat = core.PixelFormatBPP8Grayscale
	case color.Gray16Model:
		img.PixelFormat = core.PixelFormatBPP16Grayscale
	default:
		img.PixelFormat = core.PixelFormatBPP32RGBA
	}
	img.BytesPerLine = core.MinBytesPerLine(img.Width, img.PixelFormat)

	if st.options.IOOptions&core.IOOptionSourceImage != 0 {
		img.SourceImage = &core.SourceImage{PixelFormat: img.PixelFormat}
	}
	return img, nil
}

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "tiff.load_frame")
	}
	decoded, err := xtiff.Decode(bytes.NewReader(st.data))
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "tiff.load_frame", err)
	}

	switch src := decoded.(type) {
	case *image.Gray:
		if img.PixelFormat == core.PixelFormatBPP8Grayscale {
			for y := 0; y < img.Height; y++ {
				copy(img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+img.Width], src.Pix[y*src.Stride:])
			}
			return nil
		}
	case *image.Gray16:
		if img.PixelFormat == core.PixelFormatBPP16Grayscale {
			for y := 0; y < img.Height; y++ {
				copy(img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+img.Width*2], src.Pix[y*src.Stride:])
			}
			return nil
		}
	}

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
	return nil
}

func (c *codec) LoadFinish(state core.LoadState) error {
	if _, ok := state.(*loadState); !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "tiff.load_finish")
	}
	return nil
}

type saveState struct {
	stream      sio.Stream
	compression xtiff.CompressionType
	frame       int
}

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "tiff.save_init")
	}
	st := &saveState{stream: s}
	switch options.Compression {
	case core.CompressionUnknown, core.CompressionDeflate:
		st.compression = xtiff.Deflate
	case core.CompressionLZW:
		st.compression = xtiff.LZW
	case core.CompressionNone:
		st.compression = xtiff.Uncompressed
	default:
		return nil, codecerrors.Newf(codecerrors.UnsupportedCompression, "tiff.save_init",
			"compression %s", options.Compression)
	}
	return st, nil
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "tiff.save_seek_next_frame")
	}
	if st.frame > 0 {
		return codecerrors.New(codecerrors.NoMoreFrames, "tiff.save_seek_next_frame")
	}
	st.frame++
	return nil
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "tiff.save_frame")
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	var out image.Image
	switch img.PixelFormat {
	case core.PixelFormatBPP8Grayscale:
		gray := image.NewGray(rect)
		for y := 0; y < img.Height; y++ {
			copy(gray.Pix[y*gray.Stride:], img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+img.Width])
		}
		out = gray
	case core.PixelFormatBPP32RGBA:
		rgba := image.NewNRGBA(rect)
		for y := 0; y < img.Height; y++ {
			copy(rgba.Pix[y*rgba.Stride:], img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+img.Width*4])
		}
		out = rgba
	case core.PixelFormatBPP24RGB:
		rgba := image.NewNRGBA(rect)
		for y := 0; y < img.Height; y++ {
			src := img.Pixels[y*img.BytesPerLine:]
			dst := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < img.Width; x++ {
				dst[x*4+0] = src[x*3+0]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 255
			}
		}
		out = rgba
	default:
		return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "tiff.save_frame",
			"pixel format %s", img.PixelFormat)
	}

	opts := &xtiff.Options{Compression: st.compression}
	if err := xtiff.Encode(sio.Writer(st.stream), out, opts); err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "tiff.save_frame", err)
	}
	return nil
}

func (c *codec) SaveFinish(state core.SaveState) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "tiff.save_finish")
	}
	return st.stream.Flush()
}
