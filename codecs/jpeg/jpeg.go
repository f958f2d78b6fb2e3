// Package jpeg implements a JPEG codec over the standard library decoder.
package jpeg

import (
	"bytes"
	"image"
	"image/color"
	stdjpeg "image/jpeg"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
	"github.com/lateen-io/lateen/utils"
)

const defaultQuality = 85

// NewDescriptor returns the registry descriptor for the built-in JPEG codec.
func NewDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "jpeg",
		Version:      "1.0.0",
		Layout:       core.CodecLayoutVersion,
		Priority:     0,
		Description:  "Joint Photographic Experts Group",
		Extensions:   []string{"jpg", "jpeg", "jpe"},
		MimeTypes:    []string{"image/jpeg"},
		MagicNumbers: []string{"ff d8 ff"},
		Impl:         &codec{},
	}
}

// Register adds the JPEG codec to r.
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
		return nil, codecerrors.New(codecerrors.InvalidIO, "jpeg.load_init")
	}
	buf, err := utils.DrainReader(sio.Reader(s), 32*1024)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "jpeg.load_init", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	cfg, err := stdjpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.BrokenImage, "jpeg.load_init", err)
	}
	return &loadState{options: options, data: data, cfg: cfg}, nil
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "jpeg.load_seek_next_frame")
	}
	if st.frame > 0 {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "jpeg.load_seek_next_frame")
	}
	st.frame++

	img := core.NewImage()
	img.Width = st.cfg.Width
	img.Height = st.cfg.Height

	sourceFormat := core.PixelFormatBPP24YUV
	if st.cfg.ColorModel == color.GrayModel {
		img.PixelFormat = core.PixelFormatBPP8Grayscale
		sourceFormat = core.PixelFormatBPP8Grayscale
	} else {
		img.PixelFormat = core.PixelFormatBPP24RGB
	}
	img.BytesPerLine = core.MinBytesPerLine(img.Width, img.PixelFormat)

	if st.options.IOOptions&core.IOOptionSourceImage != 0 {
		img.SourceImage = &core.SourceImage{
			PixelFormat: sourceFormat,
			Compression: core.CompressionJPEG,
		}
	}
	return img, nil
}

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "jpeg.load_frame")
	}
	decoded, err := stdjpeg.Decode(bytes.NewReader(st.data))
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "jpeg.load_frame", err)
	}

	// Chroma subsampling is only known once the scan is decoded.
	if img.SourceImage != nil {
		if ycbcr, ok := decoded.(*image.YCbCr); ok {
			img.SourceImage.ChromaSubsampling = subsampling(ycbcr.SubsampleRatio)
		}
	}

	bounds := decoded.Bounds()
	if gray, ok := decoded.(*image.Gray); ok && img.PixelFormat == core.PixelFormatBPP8Grayscale {
		for y := 0; y < img.Height; y++ {
			copy(img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+img.Width], gray.Pix[y*gray.Stride:])
		}
		return nil
	}
	for y := 0; y < img.Height; y++ {
		row := img.Pixels[y*img.BytesPerLine:]
		for x := 0; x < img.Width; x++ {
			r, g, b, _ := decoded.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			row[x*3+0] = byte(r >> 8)
			row[x*3+1] = byte(g >> 8)
			row[x*3+2] = byte(b >> 8)
		}
	}
	return nil
}

func (c *codec) LoadFinish(state core.LoadState) error {
	if _, ok := state.(*loadState); !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "jpeg.load_finish")
	}
	return nil
}

func subsampling(ratio image.YCbCrSubsampleRatio) core.ChromaSubsampling {
	switch ratio {
	case image.YCbCrSubsampleRatio410:
		return core.ChromaSubsampling410
	case image.YCbCrSubsampleRatio411:
		return core.ChromaSubsampling411
	case image.YCbCrSubsampleRatio420:
		return core.ChromaSubsampling420
	case image.YCbCrSubsampleRatio422:
		return core.ChromaSubsampling422
	case image.YCbCrSubsampleRatio444:
		return core.ChromaSubsampling444
	}
	return core.ChromaSubsamplingUnknown
}

type saveState struct {
	stream  sio.Stream
	quality int
	frame   int
}

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "jpeg.save_init")
	}
	if options.Compression != core.CompressionUnknown && options.Compression != core.CompressionJPEG {
		return nil, codecerrors.Newf(codecerrors.UnsupportedCompression, "jpeg.save_init",
			"compression %s", options.Compression)
	}
	quality := int(options.CompressionLevel)
	if quality <= 0 {
		quality = defaultQuality
	}
	if quality > 100 {
		quality = 100
	}
	return &saveState{stream: s, quality: quality}, nil
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "jpeg.save_seek_next_frame")
	}
	if st.frame > 0 {
		return codecerrors.New(codecerrors.NoMoreFrames, "jpeg.save_seek_next_frame")
	}
	st.frame++
	return nil
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "jpeg.save_frame")
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
	case core.PixelFormatBPP24RGB:
		rgba := image.NewRGBA(rect)
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
		return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "jpeg.save_frame",
			"pixel format %s", img.PixelFormat)
	}

	if err := stdjpeg.Encode(sio.Writer(st.stream), out, &stdjpeg.Options{Quality: st.quality}); err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "jpeg.save_frame", err)
	}
	return nil
}

func (c *codec) SaveFinish(state core.SaveState) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "jpeg.save_finish")
	}
	return st.stream.Flush()
}
