// Package core holds the canonical in-memory image model and the codec
// interface every format backend implements.
package core

// PixelFormat tags bit depth, channel order, and palette semantics of a pixel
// buffer.  PixelFormatSource means "whatever the file holds" and is only valid
// inside SourceImage; a loaded Image always carries a concrete format.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatSource

	PixelFormatBPP1Indexed
	PixelFormatBPP2Indexed
	PixelFormatBPP4Indexed
	PixelFormatBPP8Indexed

	PixelFormatBPP1Mono
	PixelFormatBPP8Grayscale
	PixelFormatBPP16Grayscale

	PixelFormatBPP24RGB
	PixelFormatBPP24BGR
	PixelFormatBPP24YUV

	PixelFormatBPP32RGBA
	PixelFormatBPP32BGRA
	PixelFormatBPP32ARGB
	PixelFormatBPP32YUVA

	PixelFormatBPP64RGBA
)

// Indexed reports whether the format references a palette.
func (f PixelFormat) Indexed() bool {
	switch f {
	case PixelFormatBPP1Indexed, PixelFormatBPP2Indexed, PixelFormatBPP4Indexed, PixelFormatBPP8Indexed:
		return true
	}
	return false
}

// Compression identifies the on-disk compression of a source image.
type Compression int

const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionRLE
	CompressionDeflate
	CompressionLZW
	CompressionJPEG
	CompressionVP8
	CompressionVP8L
)

// ChromaSubsampling describes the chroma layout of the source image.
type ChromaSubsampling int

const (
	ChromaSubsamplingUnknown ChromaSubsampling = iota
	ChromaSubsampling410
	ChromaSubsampling411
	ChromaSubsampling420
	ChromaSubsampling422
	ChromaSubsampling444
)

// Properties is a bitset of source-image traits.
type Properties uint

const (
	PropertyFlippedVertically Properties = 1 << iota
	PropertyInterlaced
)

// Palette is a contiguous color table for indexed pixel formats.  Only
// byte-aligned palette formats are allowed (BPP24_RGB, BPP32_RGBA).
type Palette struct {
	PixelFormat PixelFormat
	Data        []byte
	ColorCount  int
}

// MetaDataEntry is one (key, value) pair of image metadata.  Both strings are
// non-empty.  Order is preserved: codecs emit metadata in source order.
type MetaDataEntry struct {
	Key   string
	Value string
}

// Resolution is an optional physical resolution record.
type ResolutionUnit int

const (
	ResolutionUnitUnknown ResolutionUnit = iota
	ResolutionUnitInch
	ResolutionUnitCentimeter
	ResolutionUnitMeter
)

type Resolution struct {
	X    float64
	Y    float64
	Unit ResolutionUnit
}

// SourceImage describes the on-disk form of a loaded image: properties that
// are usually lost during decoding.
type SourceImage struct {
	PixelFormat       PixelFormat
	ChromaSubsampling ChromaSubsampling
	Compression       Compression
	Properties        Properties
}

// Image is the in-memory image record passed between the driver, codecs, and
// callers.
//
// On load the driver allocates Pixels after the codec reports geometry; on
// save the caller provides them.  Delay is -1 for still and multi-page
// frames, and a non-negative number of milliseconds for animation frames;
// within one sequence every frame shares the same sign.  Only the first frame
// of a sequence may carry an ICC profile.
type Image struct {
	Pixels       []byte
	Width        int
	Height       int
	BytesPerLine int
	PixelFormat  PixelFormat
	Delay        int
	Palette      *Palette
	MetaData     []MetaDataEntry
	ICCP         []byte
	Resolution   *Resolution
	SourceImage  *SourceImage
}

// IOOption selects which auxiliary data codecs extract or emit.
type IOOption uint

const (
	IOOptionMetaData IOOption = 1 << iota
	IOOptionICCP
	IOOptionSourceImage
)

// LoadOptions is handed to a codec's LoadInit.
type LoadOptions struct {
	IOOptions IOOption
	// Tuning carries codec-specific knobs as free-form key/value pairs.
	Tuning map[string]string
}

// SaveOptions is handed to a codec's SaveInit.
type SaveOptions struct {
	IOOptions        IOOption
	Compression      Compression
	CompressionLevel float64 // format-specific; codecs clamp
	Tuning           map[string]string
}

// DefaultLoadOptions extracts everything a codec can provide.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{IOOptions: IOOptionMetaData | IOOptionICCP | IOOptionSourceImage}
}

// DefaultSaveOptions writes metadata and profiles when the codec supports them.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{IOOptions: IOOptionMetaData | IOOptionICCP}
}
