// Package bmp implements a Windows bitmap codec: uncompressed 8-bit indexed,
// 24-bit, and 32-bit images, bottom-up or top-down, with 4-byte row padding
// preserved in bytes_per_line.
package bmp

import (
	"encoding/binary"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
)

const (
	fileHeaderSize = 14
	infoHeaderSize = 40

	compressionRGB  = 0
	compressionRLE8 = 1
)

// NewDescriptor returns the registry descriptor for the built-in BMP codec.
func NewDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "bmp",
		Version:      "1.0.0",
		Layout:       core.CodecLayoutVersion,
		Priority:     0,
		Description:  "Windows Bitmap",
		Extensions:   []string{"bmp", "dib"},
		MimeTypes:    []string{"image/bmp", "image/x-bmp"},
		MagicNumbers: []string{"42 4d"},
		Impl:         &codec{},
	}
}

// Register adds the BMP codec to r.
func Register(r *registry.Registry) error { return r.Register(NewDescriptor()) }

type codec struct{}

type header struct {
	dataOffset  uint32
	width       int
	height      int // absolute
	topDown     bool
	bitCount    int
	compression uint32
	xppm, yppm  int32
	palette     *core.Palette
}

type loadState struct {
	stream  sio.Stream
	options core.LoadOptions
	hdr     header
	frame   int
}

func (c *codec) LoadInit(s sio.Stream, options core.LoadOptions) (core.LoadState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "bmp.load_init")
	}
	st := &loadState{stream: s, options: options}
	if err := st.readHeaders(); err != nil {
		return st, err
	}
	return st, nil
}

func (st *loadState) readHeaders() error {
	buf := make([]byte, fileHeaderSize+infoHeaderSize)
	if err := sio.StrictRead(st.stream, buf); err != nil {
		return err
	}
	if buf[0] != 'B' || buf[1] != 'M' {
		return codecerrors.New(codecerrors.BrokenImage, "bmp.signature")
	}
	st.hdr.dataOffset = binary.LittleEndian.Uint32(buf[10:])

	info := buf[fileHeaderSize:]
	if size := binary.LittleEndian.Uint32(info); size < infoHeaderSize {
		return codecerrors.Newf(codecerrors.BrokenImage, "bmp.header", "info header size %d", size)
	}
	width := int(int32(binary.LittleEndian.Uint32(info[4:])))
	height := int(int32(binary.LittleEndian.Uint32(info[8:])))
	if height < 0 {
		st.hdr.topDown = true
		height = -height
	}
	if width <= 0 || height == 0 {
		return codecerrors.Newf(codecerrors.IncorrectImageDimensions, "bmp.header", "%dx%d", width, height)
	}
	st.hdr.width = width
	st.hdr.height = height
	st.hdr.bitCount = int(binary.LittleEndian.Uint16(info[14:]))
	st.hdr.compression = binary.LittleEndian.Uint32(info[16:])
	st.hdr.xppm = int32(binary.LittleEndian.Uint32(info[24:]))
	st.hdr.yppm = int32(binary.LittleEndian.Uint32(info[28:]))

	if st.hdr.compression != compressionRGB {
		return codecerrors.Newf(codecerrors.UnsupportedCompression, "bmp.header",
			"compression %d", st.hdr.compression)
	}

	switch st.hdr.bitCount {
	case 8:
		colors := int(binary.LittleEndian.Uint32(info[32:]))
		if colors == 0 || colors > 256 {
			colors = 256
		}
		return st.readPalette(colors)
	case 24, 32:
		return nil
	}
	return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "bmp.header",
		"%d bits per pixel", st.hdr.bitCount)
}

// readPalette converts the on-disk BGRX table to a BPP24_RGB palette.
func (st *loadState) readPalette(colors int) error {
	raw := make([]byte, colors*4)
	if err := sio.StrictRead(st.stream, raw); err != nil {
		return err
	}
	data := make([]byte, colors*3)
	for i := 0; i < colors; i++ {
		data[i*3+0] = raw[i*4+2]
		data[i*3+1] = raw[i*4+1]
		data[i*3+2] = raw[i*4+0]
	}
	st.hdr.palette = &core.Palette{
		PixelFormat: core.PixelFormatBPP24RGB,
		Data:        data,
		ColorCount:  colors,
	}
	return nil
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "bmp.load_seek_next_frame")
	}
	if st.frame > 0 {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "bmp.load_seek_next_frame")
	}
	st.frame++

	img := core.NewImage()
	img.Width = st.hdr.width
	img.Height = st.hdr.height
	img.BytesPerLine = rowSize(st.hdr.width, st.hdr.bitCount)

	var sourceFormat core.PixelFormat
	switch st.hdr.bitCount {
	case 8:
		img.PixelFormat = core.PixelFormatBPP8Indexed
		img.Palette = st.hdr.palette
		sourceFormat = core.PixelFormatBPP8Indexed
	case 24:
		img.PixelFormat = core.PixelFormatBPP24RGB
		sourceFormat = core.PixelFormatBPP24BGR
	case 32:
		img.PixelFormat = core.PixelFormatBPP32RGBA
		sourceFormat = core.PixelFormatBPP32BGRA
	}

	if st.hdr.xppm > 0 && st.hdr.yppm > 0 {
		img.Resolution = &core.Resolution{
			X:    float64(st.hdr.xppm),
			Y:    float64(st.hdr.yppm),
			Unit: core.ResolutionUnitMeter,
		}
	}
	if st.options.IOOptions&core.IOOptionSourceImage != 0 {
		props := core.Properties(0)
		if !st.hdr.topDown {
			props |= core.PropertyFlippedVertically
		}
		img.SourceImage = &core.SourceImage{
			PixelFormat: sourceFormat,
			Compression: core.CompressionNone,
			Properties:  props,
		}
	}
	return img, nil
}

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "bmp.load_frame")
	}
	if _, err := st.stream.Seek(int64(st.hdr.dataOffset), sio.SeekStart); err != nil {
		return err
	}

	stride := rowSize(st.hdr.width, st.hdr.bitCount)
	row := make([]byte, stride)
	for y := 0; y < st.hdr.height; y++ {
		if err := sio.StrictRead(st.stream, row); err != nil {
			return err
		}
		outRow := y
		if !st.hdr.topDown {
			outRow = st.hdr.height - 1 - y
		}
		dst := img.Pixels[outRow*img.BytesPerLine:]
		switch st.hdr.bitCount {
		case 8:
			copy(dst[:st.hdr.width], row[:st.hdr.width])
		case 24:
			for x := 0; x < st.hdr.width; x++ {
				dst[x*3+0] = row[x*3+2]
				dst[x*3+1] = row[x*3+1]
				dst[x*3+2] = row[x*3+0]
			}
		case 32:
			for x := 0; x < st.hdr.width; x++ {
				dst[x*4+0] = row[x*4+2]
				dst[x*4+1] = row[x*4+1]
				dst[x*4+2] = row[x*4+0]
				dst[x*4+3] = row[x*4+3]
			}
		}
	}
	return nil
}

func (c *codec) LoadFinish(state core.LoadState) error {
	if _, ok := state.(*loadState); !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "bmp.load_finish")
	}
	return nil
}

type saveState struct {
	stream  sio.Stream
	options core.SaveOptions
	frame   int
}

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "bmp.save_init")
	}
	if options.Compression != core.CompressionUnknown && options.Compression != core.CompressionNone {
		return nil, codecerrors.Newf(codecerrors.UnsupportedCompression, "bmp.save_init",
			"compression %s", options.Compression)
	}
	return &saveState{stream: s, options: options}, nil
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "bmp.save_seek_next_frame")
	}
	if st.frame > 0 {
		return codecerrors.New(codecerrors.NoMoreFrames, "bmp.save_seek_next_frame")
	}
	st.frame++

	var bitCount, paletteEntries int
	switch img.PixelFormat {
	case core.PixelFormatBPP8Indexed:
		bitCount = 8
		paletteEntries = img.Palette.ColorCount
	case core.PixelFormatBPP24RGB:
		bitCount = 24
	case core.PixelFormatBPP32RGBA:
		bitCount = 32
	default:
		return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "bmp.save_seek_next_frame",
			"pixel format %s", img.PixelFormat)
	}

	stride := rowSize(img.Width, bitCount)
	dataOffset := fileHeaderSize + infoHeaderSize + paletteEntries*4
	fileSize := dataOffset + stride*img.Height

	buf := make([]byte, fileHeaderSize+infoHeaderSize)
	buf[0], buf[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(buf[2:], uint32(fileSize))
	binary.LittleEndian.PutUint32(buf[10:], uint32(dataOffset))

	info := buf[fileHeaderSize:]
	binary.LittleEndian.PutUint32(info, infoHeaderSize)
	binary.LittleEndian.PutUint32(info[4:], uint32(img.Width))
	binary.LittleEndian.PutUint32(info[8:], uint32(img.Height))
	binary.LittleEndian.PutUint16(info[12:], 1)
	binary.LittleEndian.PutUint16(info[14:], uint16(bitCount))
	binary.LittleEndian.PutUint32(info[16:], compressionRGB)
	binary.LittleEndian.PutUint32(info[20:], uint32(stride*img.Height))
	if img.Resolution != nil && img.Resolution.Unit == core.ResolutionUnitMeter {
		binary.LittleEndian.PutUint32(info[24:], uint32(img.Resolution.X))
		binary.LittleEndian.PutUint32(info[28:], uint32(img.Resolution.Y))
	}
	binary.LittleEndian.PutUint32(info[32:], uint32(paletteEntries))

	if err := sio.StrictWrite(st.stream, buf); err != nil {
		return err
	}

	if paletteEntries > 0 {
		table := make([]byte, paletteEntries*4)
		for i := 0; i < paletteEntries; i++ {
			r, g, b, _, err := img.Palette.ColorRGBA(i)
			if err != nil {
				return err
			}
			table[i*4+0] = b
			table[i*4+1] = g
			table[i*4+2] = r
		}
		if err := sio.StrictWrite(st.stream, table); err != nil {
			return err
		}
	}
	return nil
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "bmp.save_frame")
	}

	bitCount := core.BitsPerPixel(img.PixelFormat)
	stride := rowSize(img.Width, bitCount)
	row := make([]byte, stride)
	// Rows are stored bottom-up.
	for y := img.Height - 1; y >= 0; y-- {
		src := img.Pixels[y*img.BytesPerLine:]
		switch img.PixelFormat {
		case core.PixelFormatBPP8Indexed:
			copy(row[:img.Width], src[:img.Width])
		case core.PixelFormatBPP24RGB:
			for x := 0; x < img.Width; x++ {
				row[x*3+0] = src[x*3+2]
				row[x*3+1] = src[x*3+1]
				row[x*3+2] = src[x*3+0]
			}
		case core.PixelFormatBPP32RGBA:
			for x := 0; x < img.Width; x++ {
				row[x*4+0] = src[x*4+2]
				row[x*4+1] = src[x*4+1]
				row[x*4+2] = src[x*4+0]
				row[x*4+3] = src[x*4+3]
			}
		}
		if err := sio.StrictWrite(st.stream, row); err != nil {
			return err
		}
	}
	return nil
}

func (c *codec) SaveFinish(state core.SaveState) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "bmp.save_finish")
	}
	return st.stream.Flush()
}

// rowSize returns the 4-byte padded row stride.
func rowSize(width, bitCount int) int {
	return (width*bitCount/8 + 3) &^ 3
}
