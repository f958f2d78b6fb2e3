package core

// Pure helpers over the pixel-format enumeration.  The string form is the
// canonical identifier used in manifests and diagnostics.

var pixelFormatBits = map[PixelFormat]int{
	PixelFormatBPP1Indexed:    1,
	PixelFormatBPP2Indexed:    2,
	PixelFormatBPP4Indexed:    4,
	PixelFormatBPP8Indexed:    8,
	PixelFormatBPP1Mono:       1,
	PixelFormatBPP8Grayscale:  8,
	PixelFormatBPP16Grayscale: 16,
	PixelFormatBPP24RGB:       24,
	PixelFormatBPP24BGR:       24,
	PixelFormatBPP24YUV:       24,
	PixelFormatBPP32RGBA:      32,
	PixelFormatBPP32BGRA:      32,
	PixelFormatBPP32ARGB:      32,
	PixelFormatBPP32YUVA:      32,
	PixelFormatBPP64RGBA:      64,
}

// BitsPerPixel returns the storage width of one pixel, or 0 for formats with
// no defined width (UNKNOWN, SOURCE).
func BitsPerPixel(f PixelFormat) int { return pixelFormatBits[f] }

// MinBytesPerLine returns the minimum row size in bytes for width pixels of
// format f: ceil(width * bits / 8).
func MinBytesPerLine(width int, f PixelFormat) int {
	return (width*BitsPerPixel(f) + 7) / 8
}

// BytesPerImage returns the pixel buffer size implied by the image geometry.
func BytesPerImage(img *Image) int {
	if img == nil {
		return 0
	}
	return img.BytesPerLine * img.Height
}

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatUnknown:        "UNKNOWN",
	PixelFormatSource:         "SOURCE",
	PixelFormatBPP1Indexed:    "BPP1_INDEXED",
	PixelFormatBPP2Indexed:    "BPP2_INDEXED",
	PixelFormatBPP4Indexed:    "BPP4_INDEXED",
	PixelFormatBPP8Indexed:    "BPP8_INDEXED",
	PixelFormatBPP1Mono:       "BPP1_MONO",
	PixelFormatBPP8Grayscale:  "BPP8_GRAYSCALE",
	PixelFormatBPP16Grayscale: "BPP16_GRAYSCALE",
	PixelFormatBPP24RGB:       "BPP24_RGB",
	PixelFormatBPP24BGR:       "BPP24_BGR",
	PixelFormatBPP24YUV:       "BPP24_YUV",
	PixelFormatBPP32RGBA:      "BPP32_RGBA",
	PixelFormatBPP32BGRA:      "BPP32_BGRA",
	PixelFormatBPP32ARGB:      "BPP32_ARGB",
	PixelFormatBPP32YUVA:      "BPP32_YUVA",
	PixelFormatBPP64RGBA:      "BPP64_RGBA",
}

var pixelFormatValues = invert(pixelFormatNames)

func (f PixelFormat) String() string { return nameOf(pixelFormatNames, int(f)) }

// PixelFormatFromString parses the canonical string form.  Unrecognized input
// yields PixelFormatUnknown.
func PixelFormatFromString(s string) PixelFormat {
	return PixelFormat(pixelFormatValues[s])
}

var compressionNames = map[Compression]string{
	CompressionUnknown: "UNKNOWN",
	CompressionNone:    "NONE",
	CompressionRLE:     "RLE",
	CompressionDeflate: "DEFLATE",
	CompressionLZW:     "LZW",
	CompressionJPEG:    "JPEG",
	CompressionVP8:     "VP8",
	CompressionVP8L:    "VP8L",
}

var compressionValues = invert(compressionNames)

func (c Compression) String() string { return nameOf(compressionNames, int(c)) }

// CompressionFromString parses the canonical string form.
func CompressionFromString(s string) Compression {
	return Compression(compressionValues[s])
}

var propertyNames = map[Properties]string{
	PropertyFlippedVertically: "FLIPPED-VERTICALLY",
	PropertyInterlaced:        "INTERLACED",
}

// String renders the bitset as a ';'-joined list of flags.
func (p Properties) String() string {
	out := ""
	for flag := Properties(1); flag <= p; flag <<= 1 {
		if p&flag == 0 {
			continue
		}
		if out != "" {
			out += ";"
		}
		out += propertyNames[flag]
	}
	return out
}

// PropertyFromString parses a single canonical flag name.
func PropertyFromString(s string) Properties {
	for flag, name := range propertyNames {
		if name == s {
			return flag
		}
	}
	return 0
}

func invert[K ~int](names map[K]string) map[string]int {
	out := make(map[string]int, len(names))
	for k, v := range names {
		out[v] = int(k)
	}
	return out
}

func nameOf[K ~int](names map[K]string, v int) string {
	if name, ok := names[K(v)]; ok {
		return name
	}
	return "UNKNOWN"
}
