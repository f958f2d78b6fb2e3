// Package vips is an optional libvips-backed codec backend.  It is not
// registered by default: callers that want libvips performance call Register
// explicitly, which adds jpeg/png/webp descriptors behind the built-ins.
package vips

import (
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
	"github.com/lateen-io/lateen/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Startup initialises libvips.  Call once per process, before Register.
func Startup(cfg BackendConfig) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
}

// Shutdown releases all libvips resources.  Call once at process exit.
func Shutdown() { govips.Shutdown() }

// Register adds vips-backed descriptors for jpeg, png, and webp.  They carry
// a higher priority value than the built-ins, so in a registry holding both
// the built-ins win lookups whatever the registration order; these win only
// in a registry without the built-ins.
func Register(r *registry.Registry, cfg BackendConfig) error {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	for _, desc := range []struct {
		name       string
		extensions []string
		mimeTypes  []string
		magic      []string
	}{
		{"jpeg", []string{"jpg", "jpeg", "jpe"}, []string{"image/jpeg"}, []string{"ff d8 ff"}},
		{"png", []string{"png"}, []string{"image/png"}, []string{"89 50 4e 47 0d 0a 1a 0a"}},
		{"webp", []string{"webp"}, []string{"image/webp"}, []string{"52 49 46 46 ?? ?? ?? ?? 57 45 42 50"}},
	} {
		err := r.Register(&registry.Descriptor{
			Name:         desc.name + "-vips",
			Version:      "1.0.0",
			Layout:       core.CodecLayoutVersion,
			Priority:     5,
			Description:  "libvips backend (" + desc.name + ")",
			Extensions:   desc.extensions,
			MimeTypes:    desc.mimeTypes,
			MagicNumbers: desc.magic,
			Impl:         &codec{format: desc.name, quality: cfg.DefaultQuality},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type codec struct {
	format  string
	quality int
}

type loadState struct {
	options core.LoadOptions
	ref     *govips.ImageRef
	frame   int
}

func (c *codec) LoadInit(s sio.Stream, options core.LoadOptions) (core.LoadState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "vips.load_init")
	}
	buf, err := utils.DrainReader(sio.Reader(s), 32*1024)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "vips.load_init", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.UnderlyingCodec, "vips.load_init", err)
	}
	return &loadState{options: options, ref: ref}, nil
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "vips.load_seek_next_frame")
	}
	if st.frame > 0 {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "vips.load_seek_next_frame")
	}
	st.frame++

	img := core.NewImage()
	img.Width = st.ref.Width()
	img.Height = st.ref.Height()
	if st.ref.HasAlpha() {
		img.PixelFormat = core.PixelFormatBPP32RGBA
	} else {
		img.PixelFormat = core.PixelFormatBPP24RGB
	}
	img.BytesPerLine = core.MinBytesPerLine(img.Width, img.PixelFormat)

	if st.options.IOOptions&core.IOOptionMetaData != 0 {
		for _, field := range st.ref.GetFields() {
			if value := st.ref.GetString(field); value != "" {
				img.MetaData = append(img.MetaData, core.MetaDataEntry{Key: field, Value: value})
			}
		}
	}
	if st.options.IOOptions&core.IOOptionSourceImage != 0 {
		img.SourceImage = &core.SourceImage{PixelFormat: img.PixelFormat}
	}
	return img, nil
}

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "vips.load_frame")
	}
	raw, err := st.ref.ToBytes()
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "vips.load_frame", err)
	}
	bands := st.ref.Bands()
	stride := img.Width * bands
	rowBytes := core.MinBytesPerLine(img.Width, img.PixelFormat)
	if stride < rowBytes {
		return codecerrors.Newf(codecerrors.UnderlyingCodec, "vips.load_frame",
			"%d bands for %s", bands, img.PixelFormat)
	}
	for y := 0; y < img.Height; y++ {
		copy(img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+rowBytes], raw[y*stride:])
	}
	return nil
}

func (c *codec) LoadFinish(state core.LoadState) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "vips.load_finish")
	}
	st.ref.Close()
	return nil
}

type saveState struct {
	stream  sio.Stream
	quality int
	frame   int
}

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "vips.save_init")
	}
	quality := int(options.CompressionLevel)
	if quality <= 0 {
		quality = c.quality
	}
	if quality > 100 {
		quality = 100
	}
	return &saveState{stream: s, quality: quality}, nil
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "vips.save_seek_next_frame")
	}
	if st.frame > 0 {
		return codecerrors.New(codecerrors.NoMoreFrames, "vips.save_seek_next_frame")
	}
	st.frame++
	return nil
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "vips.save_frame")
	}

	var bands int
	switch img.PixelFormat {
	case core.PixelFormatBPP24RGB:
		bands = 3
	case core.PixelFormatBPP32RGBA:
		bands = 4
	default:
		return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "vips.save_frame",
			"pixel format %s", img.PixelFormat)
	}

	// Repack to tight rows; vips imports raw memory without stride control.
	tight := make([]byte, img.Width*bands*img.Height)
	rowBytes := img.Width * bands
	for y := 0; y < img.Height; y++ {
		copy(tight[y*rowBytes:], img.Pixels[y*img.BytesPerLine:y*img.BytesPerLine+rowBytes])
	}

	ref, err := govips.NewImageFromMemory(tight, img.Width, img.Height, bands)
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "vips.save_frame", err)
	}
	defer ref.Close()

	var out []byte
	switch c.format {
	case "jpeg":
		ep := govips.NewJpegExportParams()
		ep.Quality = st.quality
		out, _, err = ref.ExportJpeg(ep)
	case "png":
		ep := govips.NewPngExportParams()
		out, _, err = ref.ExportPng(ep)
	case "webp":
		ep := govips.NewWebpExportParams()
		ep.Quality = st.quality
		out, _, err = ref.ExportWebp(ep)
	default:
		return codecerrors.Newf(codecerrors.InvalidArgument, "vips.save_frame", "format %q", c.format)
	}
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "vips.save_frame", err)
	}
	return sio.StrictWrite(st.stream, out)
}

func (c *codec) SaveFinish(state core.SaveState) error {
	st, ok := state.(*saveState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "vips.save_finish")
	}
	return st.stream.Flush()
}
