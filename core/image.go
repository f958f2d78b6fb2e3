package core

import (
	codecerrors "github.com/lateen-io/lateen/errors"
)

// NewImage returns an image skeleton with Delay set to -1 (still frame).
// Pixels are allocated separately, by the driver on load or by the caller on
// save.
func NewImage() *Image {
	return &Image{Delay: -1}
}

// DeepCopy duplicates the image including pixels, palette, and metadata.
func (img *Image) DeepCopy() *Image {
	out := img.SkeletonCopy()
	if img.Pixels != nil {
		out.Pixels = make([]byte, len(img.Pixels))
		copy(out.Pixels, img.Pixels)
	}
	if img.Palette != nil {
		p := &Palette{
			PixelFormat: img.Palette.PixelFormat,
			ColorCount:  img.Palette.ColorCount,
			Data:        make([]byte, len(img.Palette.Data)),
		}
		copy(p.Data, img.Palette.Data)
		out.Palette = p
	}
	return out
}

// SkeletonCopy duplicates every field except pixels and palette, which are
// left nil.  Converters that rebuild pixels start from a skeleton.
func (img *Image) SkeletonCopy() *Image {
	out := &Image{
		Width:        img.Width,
		Height:       img.Height,
		BytesPerLine: img.BytesPerLine,
		PixelFormat:  img.PixelFormat,
		Delay:        img.Delay,
	}
	if img.MetaData != nil {
		out.MetaData = make([]MetaDataEntry, len(img.MetaData))
		copy(out.MetaData, img.MetaData)
	}
	if img.ICCP != nil {
		out.ICCP = make([]byte, len(img.ICCP))
		copy(out.ICCP, img.ICCP)
	}
	if img.Resolution != nil {
		r := *img.Resolution
		out.Resolution = &r
	}
	if img.SourceImage != nil {
		s := *img.SourceImage
		out.SourceImage = &s
	}
	return out
}

// CheckSkeletonValid verifies geometry and pixel format without requiring
// pixels: positive dimensions, a concrete pixel format, a row size of at
// least the minimum for the width, and a palette present exactly when the
// format is indexed.
func (img *Image) CheckSkeletonValid() error {
	if img == nil {
		return codecerrors.New(codecerrors.NullPointer, "image.check")
	}
	if img.Width <= 0 || img.Height <= 0 {
		return codecerrors.Newf(codecerrors.IncorrectImageDimensions, "image.check",
			"%dx%d", img.Width, img.Height)
	}
	if img.PixelFormat == PixelFormatUnknown || img.PixelFormat == PixelFormatSource {
		return codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "image.check",
			"pixel format %s", img.PixelFormat)
	}
	if img.BytesPerLine < MinBytesPerLine(img.Width, img.PixelFormat) {
		return codecerrors.Newf(codecerrors.BrokenImage, "image.check",
			"bytes per line %d below minimum %d", img.BytesPerLine,
			MinBytesPerLine(img.Width, img.PixelFormat))
	}
	if img.PixelFormat.Indexed() != (img.Palette != nil) {
		return codecerrors.Newf(codecerrors.BrokenImage, "image.check",
			"palette presence does not match pixel format %s", img.PixelFormat)
	}
	return nil
}

// CheckValid additionally requires an allocated pixel buffer of the full
// image size.
func (img *Image) CheckValid() error {
	if err := img.CheckSkeletonValid(); err != nil {
		return err
	}
	if img.Pixels == nil {
		return codecerrors.New(codecerrors.NullPointer, "image.check_pixels")
	}
	if len(img.Pixels) < BytesPerImage(img) {
		return codecerrors.Newf(codecerrors.BrokenImage, "image.check_pixels",
			"pixel buffer %d bytes, need %d", len(img.Pixels), BytesPerImage(img))
	}
	return nil
}

// MirrorVertically swaps rows in place.
func (img *Image) MirrorVertically() error {
	if err := img.CheckValid(); err != nil {
		return err
	}
	stride := img.BytesPerLine
	tmp := make([]byte, stride)
	for top, bottom := 0, img.Height-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Pixels[top*stride : top*stride+stride]
		b := img.Pixels[bottom*stride : bottom*stride+stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
	return nil
}

// MirrorHorizontally reverses pixels within each row in place, accounting for
// the storage width of the pixel format.  Sub-byte indexed formats are
// mirrored by swapping bit groups.
func (img *Image) MirrorHorizontally() error {
	if err := img.CheckValid(); err != nil {
		return err
	}
	bits := BitsPerPixel(img.PixelFormat)
	if bits >= 8 {
		bytesPerPixel := bits / 8
		for y := 0; y < img.Height; y++ {
			row := img.Pixels[y*img.BytesPerLine:]
			mirrorRowBytes(row, img.Width, bytesPerPixel)
		}
		return nil
	}
	for y := 0; y < img.Height; y++ {
		row := img.Pixels[y*img.BytesPerLine : y*img.BytesPerLine+img.BytesPerLine]
		mirrorRowBits(row, img.Width, bits)
	}
	return nil
}

func mirrorRowBytes(row []byte, width, bytesPerPixel int) {
	tmp := make([]byte, bytesPerPixel)
	for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
		a := row[l*bytesPerPixel : (l+1)*bytesPerPixel]
		b := row[r*bytesPerPixel : (r+1)*bytesPerPixel]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

func mirrorRowBits(row []byte, width, bits int) {
	get := func(i int) byte { return getBitGroup(row, i, bits) }
	set := func(i int, v byte) { setBitGroup(row, i, bits, v) }
	for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
		a, b := get(l), get(r)
		set(l, b)
		set(r, a)
	}
}

func getBitGroup(row []byte, index, bits int) byte {
	bitPos := index * bits
	shift := 8 - bits - bitPos%8
	mask := byte(1<<bits - 1)
	return (row[bitPos/8] >> shift) & mask
}

func setBitGroup(row []byte, index, bits int, v byte) {
	bitPos := index * bits
	shift := 8 - bits - bitPos%8
	mask := byte(1<<bits-1) << shift
	row[bitPos/8] = row[bitPos/8]&^mask | (v << shift & mask)
}

// ColorRGBA resolves a palette entry to straight-alpha RGBA.  Only
// byte-aligned palette formats are supported.
func (p *Palette) ColorRGBA(index int) (r, g, b, a byte, err error) {
	if p == nil {
		return 0, 0, 0, 0, codecerrors.New(codecerrors.NullPointer, "palette.color")
	}
	if index < 0 || index >= p.ColorCount {
		return 0, 0, 0, 0, codecerrors.Newf(codecerrors.BrokenImage, "palette.color",
			"index %d out of range [0; %d)", index, p.ColorCount)
	}
	switch p.PixelFormat {
	case PixelFormatBPP24RGB:
		e := p.Data[index*3:]
		return e[0], e[1], e[2], 255, nil
	case PixelFormatBPP32RGBA:
		e := p.Data[index*4:]
		return e[0], e[1], e[2], e[3], nil
	}
	return 0, 0, 0, 0, codecerrors.Newf(codecerrors.UnsupportedPixelFormat, "palette.color",
		"palette format %s", p.PixelFormat)
}
