// Package webp implements the WebP codec: still images and animated
// sequences with sub-rectangle frames composited through the shared canvas.
//
// The RIFF container is demuxed here; frame bitstreams (VP8/VP8L, plus an
// optional ALPH chunk) are re-wrapped as minimal still files and decoded
// through golang.org/x/image/webp.  Saving is not implemented.
package webp

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"

	xwebp "golang.org/x/image/webp"

	"github.com/lateen-io/lateen/compose"
	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
	"github.com/lateen-io/lateen/utils"
)

// NewDescriptor returns the registry descriptor for the built-in WebP codec.
func NewDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         "webp",
		Version:      "1.0.0",
		Layout:       core.CodecLayoutVersion,
		Priority:     0,
		Description:  "WebP",
		Extensions:   []string{"webp"},
		MimeTypes:    []string{"image/webp"},
		MagicNumbers: []string{"52 49 46 46 ?? ?? ?? ?? 57 45 42 50"},
		Impl:         &codec{},
	}
}

// Register adds the WebP codec to r.
func Register(r *registry.Registry) error { return r.Register(NewDescriptor()) }

type codec struct{}

const (
	chunkHeaderSize = 8
	anmfHeaderSize  = 16

	vp8xFlagICCP  = 0x20
	vp8xFlagAlpha = 0x10

	anmfFlagNoBlend    = 0x02
	anmfFlagBackground = 0x01
)

// frame is one ANMF entry: placement, timing, and the raw sub-chunks
// (optional ALPH followed by VP8/VP8L).
type frame struct {
	rect       compose.Rect
	durationMs int
	dispose    compose.Dispose
	blend      compose.Blend
	data       []byte
}

// demuxed is the parsed container.
type demuxed struct {
	canvasWidth  int
	canvasHeight int
	background   compose.RGBA
	iccp         []byte
	frames       []frame
	still        []byte // whole file, for non-animated images
	lossless     bool
	hasAlpha     bool
}

type loadState struct {
	options core.LoadOptions
	demux   *demuxed
	canvas  *compose.Canvas
	frame   int
}

func (c *codec) LoadInit(s sio.Stream, options core.LoadOptions) (core.LoadState, error) {
	if s == nil {
		return nil, codecerrors.New(codecerrors.InvalidIO, "webp.load_init")
	}
	buf, err := utils.DrainReader(sio.Reader(s), 32*1024)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "webp.load_init", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	dmx, err := demux(data)
	if err != nil {
		return nil, err
	}
	st := &loadState{options: options, demux: dmx}
	if len(dmx.frames) > 0 {
		st.canvas, err = compose.NewCanvas(dmx.canvasWidth, dmx.canvasHeight, dmx.background)
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

// demux walks the RIFF chunk list.  Chunk headers are 4 bytes FourCC plus a
// little-endian payload size; payloads are padded to even offsets.
func demux(data []byte) (*demuxed, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, codecerrors.New(codecerrors.BrokenImage, "webp.demux")
	}

	dmx := &demuxed{still: data}
	offset := 12
	for offset+chunkHeaderSize <= len(data) {
		fourCC := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		payload := offset + chunkHeaderSize
		if payload+size > len(data) {
			return nil, codecerrors.Newf(codecerrors.BrokenImage, "webp.demux",
				"chunk %q truncated", fourCC)
		}
		body := data[payload : payload+size]

		switch fourCC {
		case "VP8X":
			if size < 10 {
				return nil, codecerrors.New(codecerrors.BrokenImage, "webp.demux")
			}
			dmx.hasAlpha = body[0]&vp8xFlagAlpha != 0
			dmx.canvasWidth = int(uint24(body[4:])) + 1
			dmx.canvasHeight = int(uint24(body[7:])) + 1
		case "ANIM":
			if size < 6 {
				return nil, codecerrors.New(codecerrors.BrokenImage, "webp.demux")
			}
			// Background color is stored B, G, R, A.
			dmx.background = compose.RGBA{body[2], body[1], body[0], body[3]}
		case "ANMF":
			f, err := parseANMF(body)
			if err != nil {
				return nil, err
			}
			dmx.frames = append(dmx.frames, f)
		case "ICCP":
			dmx.iccp = body
		case "VP8L":
			dmx.lossless = true
		}

		offset = payload + size
		if size%2 == 1 {
			offset++ // pad byte
		}
	}
	return dmx, nil
}

// parseANMF decodes one animation frame header: 24-bit fields for placement
// (stored halved) and size (stored minus one), a 24-bit duration, and a
// flags byte carrying the blend and disposal bits.
func parseANMF(body []byte) (frame, error) {
	if len(body) < anmfHeaderSize {
		return frame{}, codecerrors.New(codecerrors.BrokenImage, "webp.demux_anmf")
	}
	f := frame{
		rect: compose.Rect{
			X: int(uint24(body[0:])) * 2,
			Y: int(uint24(body[3:])) * 2,
			W: int(uint24(body[6:])) + 1,
			H: int(uint24(body[9:])) + 1,
		},
		durationMs: int(uint24(body[12:])),
		data:       body[anmfHeaderSize:],
	}
	if body[15]&anmfFlagBackground != 0 {
		f.dispose = compose.DisposeBackground
	}
	if body[15]&anmfFlagNoBlend != 0 {
		f.blend = compose.NoBlend
	} else {
		f.blend = compose.BlendOver
	}
	return f, nil
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func (c *codec) LoadSeekNextFrame(state core.LoadState) (*core.Image, error) {
	st, ok := state.(*loadState)
	if !ok {
		return nil, codecerrors.New(codecerrors.InvalidArgument, "webp.load_seek_next_frame")
	}

	if st.canvas == nil {
		return st.seekStill()
	}
	if st.frame >= len(st.demux.frames) {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "webp.load_seek_next_frame")
	}
	f := st.demux.frames[st.frame]
	if err := st.canvas.Advance(f.rect, f.dispose, f.blend); err != nil {
		return nil, err
	}

	img := core.NewImage()
	img.Width = st.canvas.Width
	img.Height = st.canvas.Height
	img.PixelFormat = core.PixelFormatBPP32RGBA
	img.BytesPerLine = st.canvas.BytesPerLine()
	if len(st.demux.frames) > 1 {
		// Fall back to 100 ms when the stored duration is not positive.
		if f.durationMs <= 0 {
			img.Delay = 100
		} else {
			img.Delay = f.durationMs
		}
	}
	st.decorate(img)
	return img, nil
}

func (st *loadState) seekStill() (*core.Image, error) {
	if st.frame > 0 {
		return nil, codecerrors.New(codecerrors.NoMoreFrames, "webp.load_seek_next_frame")
	}
	cfg, err := xwebp.DecodeConfig(bytes.NewReader(st.demux.still))
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.UnderlyingCodec, "webp.load_seek_next_frame", err)
	}

	img := core.NewImage()
	img.Width = cfg.Width
	img.Height = cfg.Height
	img.PixelFormat = core.PixelFormatBPP32RGBA
	img.BytesPerLine = core.MinBytesPerLine(img.Width, img.PixelFormat)
	st.decorate(img)
	return img, nil
}

// decorate fills the ICC profile (first frame only) and the source-image
// record (every frame) per the load options.
func (st *loadState) decorate(img *core.Image) {
	if st.frame == 0 && st.options.IOOptions&core.IOOptionICCP != 0 && len(st.demux.iccp) > 0 {
		img.ICCP = utils.CloneBytes(st.demux.iccp)
	}
	if st.options.IOOptions&core.IOOptionSourceImage != 0 {
		src := &core.SourceImage{}
		if st.demux.lossless {
			src.PixelFormat = core.PixelFormatBPP32RGBA
			src.Compression = core.CompressionVP8L
		} else {
			src.Compression = core.CompressionVP8
			src.ChromaSubsampling = core.ChromaSubsampling420
			if st.demux.hasAlpha {
				src.PixelFormat = core.PixelFormatBPP32YUVA
			} else {
				src.PixelFormat = core.PixelFormatBPP24YUV
			}
		}
		img.SourceImage = src
	}
}

func (c *codec) LoadFrame(state core.LoadState, img *core.Image) error {
	st, ok := state.(*loadState)
	if !ok {
		return codecerrors.New(codecerrors.InvalidArgument, "webp.load_frame")
	}

	if st.canvas == nil {
		st.frame++
		return decodeInto(st.demux.still, img.Pixels, img.BytesPerLine, img.Width, img.Height)
	}

	f := st.demux.frames[st.frame]
	st.frame++

	still, err := wrapFragment(f)
	if err != nil {
		return err
	}
	fragment := make([]byte, f.rect.W*f.rect.H*4)
	if err := decodeInto(still, fragment, f.rect.W*4, f.rect.W, f.rect.H); err != nil {
		return err
	}
	if err := st.canvas.Compose(fragment); err != nil {
		return err
	}
	return st.canvas.CopyTo(img.Pixels)
}

// wrapFragment rebuilds a standalone still file around a frame's sub-chunks
// so the bitstream decoder can consume it.  Lossy frames with a separate
// alpha plane need a VP8X header announcing the alpha flag.
func wrapFragment(f frame) ([]byte, error) {
	var alph, bitstream []byte
	lossless := false

	offset := 0
	for offset+chunkHeaderSize <= len(f.data) {
		fourCC := string(f.data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(f.data[offset+4 : offset+8]))
		end := offset + chunkHeaderSize + size
		if end > len(f.data) {
			return nil, codecerrors.Newf(codecerrors.BrokenImage, "webp.wrap_fragment",
				"chunk %q truncated", fourCC)
		}
		whole := f.data[offset:end]
		switch fourCC {
		case "ALPH":
			alph = whole
		case "VP8 ":
			bitstream = whole
		case "VP8L":
			bitstream = whole
			lossless = true
		}
		offset = end
		if size%2 == 1 {
			offset++
		}
	}
	if bitstream == nil {
		return nil, codecerrors.New(codecerrors.BrokenImage, "webp.wrap_fragment")
	}

	var chunks bytes.Buffer
	if alph != nil && !lossless {
		vp8x := make([]byte, chunkHeaderSize+10)
		copy(vp8x, "VP8X")
		binary.LittleEndian.PutUint32(vp8x[4:], 10)
		vp8x[8] = vp8xFlagAlpha
		putUint24(vp8x[12:], uint32(f.rect.W-1))
		putUint24(vp8x[15:], uint32(f.rect.H-1))
		chunks.Write(vp8x)
		writeChunk(&chunks, alph)
	}
	writeChunk(&chunks, bitstream)

	out := make([]byte, 0, 12+chunks.Len())
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+chunks.Len()))
	out = append(out, "WEBP"...)
	return append(out, chunks.Bytes()...), nil
}

func writeChunk(dst *bytes.Buffer, whole []byte) {
	dst.Write(whole)
	if len(whole)%2 == 1 {
		dst.WriteByte(0)
	}
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// decodeInto decodes a still file and writes straight-alpha RGBA rows into
// dst with the given stride.
func decodeInto(still, dst []byte, stride, width, height int) error {
	decoded, err := xwebp.Decode(bytes.NewReader(still))
	if err != nil {
		return codecerrors.Wrap(codecerrors.UnderlyingCodec, "webp.decode", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return codecerrors.Newf(codecerrors.BrokenImage, "webp.decode",
			"bitstream %dx%d, header %dx%d", bounds.Dx(), bounds.Dy(), width, height)
	}

	if nrgba, ok := decoded.(*image.NRGBA); ok {
		for y := 0; y < height; y++ {
			copy(dst[y*stride:y*stride+width*4], nrgba.Pix[y*nrgba.Stride:])
		}
		return nil
	}
	for y := 0; y < height; y++ {
		row := dst[y*stride:]
		for x := 0; x < width; x++ {
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
		return codecerrors.New(codecerrors.InvalidArgument, "webp.load_finish")
	}
	return nil
}

// ── save path (not implemented, matching the upstream encoder status) ─────────

func (c *codec) SaveInit(s sio.Stream, options core.SaveOptions) (core.SaveState, error) {
	return nil, codecerrors.New(codecerrors.NotImplemented, "webp.save_init")
}

func (c *codec) SaveSeekNextFrame(state core.SaveState, img *core.Image) error {
	return codecerrors.New(codecerrors.NotImplemented, "webp.save_seek_next_frame")
}

func (c *codec) SaveFrame(state core.SaveState, img *core.Image) error {
	return codecerrors.New(codecerrors.NotImplemented, "webp.save_frame")
}

func (c *codec) SaveFinish(state core.SaveState) error {
	return codecerrors.New(codecerrors.NotImplemented, "webp.save_finish")
}
