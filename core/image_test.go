package core

import (
	"bytes"
	"testing"

	codecerrors "github.com/lateen-io/lateen/errors"
)

func newTestImage(t *testing.T) *Image {
	t.Helper()
	img := NewImage()
	img.Width = 3
	img.Height = 2
	img.PixelFormat = PixelFormatBPP24RGB
	img.BytesPerLine = MinBytesPerLine(img.Width, img.PixelFormat)
	img.Pixels = []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9,
		10, 11, 12, 13, 14, 15, 16, 17, 18,
	}
	img.MetaData = []MetaDataEntry{{Key: "Comment", Value: "test"}, {Key: "Author", Value: "nobody"}}
	img.ICCP = []byte{0xCA, 0xFE}
	img.SourceImage = &SourceImage{PixelFormat: PixelFormatBPP24BGR, Compression: CompressionNone}
	return img
}

func TestDeepCopy(t *testing.T) {
	img := newTestImage(t)
	cp := img.DeepCopy()

	if cp == img {
		t.Fatal("deep copy returned the same value")
	}
	if !bytes.Equal(cp.Pixels, img.Pixels) {
		t.Error("pixels differ")
	}
	if cp.Width != img.Width || cp.Height != img.Height || cp.BytesPerLine != img.BytesPerLine {
		t.Error("geometry differs")
	}
	if len(cp.MetaData) != 2 || cp.MetaData[0].Key != "Comment" || cp.MetaData[1].Key != "Author" {
		t.Error("metadata order not preserved")
	}

	// Mutating the copy must not touch the original.
	cp.Pixels[0] = 99
	if img.Pixels[0] == 99 {
		t.Error("pixel buffers are shared")
	}
}

func TestSkeletonCopy(t *testing.T) {
	img := newTestImage(t)
	img.Palette = &Palette{PixelFormat: PixelFormatBPP24RGB, Data: make([]byte, 3), ColorCount: 1}
	img.PixelFormat = PixelFormatBPP8Indexed
	img.BytesPerLine = MinBytesPerLine(img.Width, img.PixelFormat)

	sk := img.SkeletonCopy()
	if sk.Pixels != nil || sk.Palette != nil {
		t.Error("skeleton copy must drop pixels and palette")
	}
	if sk.Width != img.Width || sk.PixelFormat != img.PixelFormat || sk.Delay != img.Delay {
		t.Error("skeleton copy lost scalar fields")
	}
	if len(sk.MetaData) != len(img.MetaData) {
		t.Error("skeleton copy lost metadata")
	}
}

func TestCheckValid(t *testing.T) {
	img := newTestImage(t)
	if err := img.CheckValid(); err != nil {
		t.Fatalf("valid image rejected: %v", err)
	}

	bad := img.DeepCopy()
	bad.Width = 0
	if err := bad.CheckValid(); !codecerrors.Is(err, codecerrors.IncorrectImageDimensions) {
		t.Errorf("zero width: got %v", err)
	}

	bad = img.DeepCopy()
	bad.PixelFormat = PixelFormatSource
	if err := bad.CheckValid(); !codecerrors.Is(err, codecerrors.UnsupportedPixelFormat) {
		t.Errorf("SOURCE format: got %v", err)
	}

	bad = img.DeepCopy()
	bad.BytesPerLine = 2
	if err := bad.CheckValid(); !codecerrors.Is(err, codecerrors.BrokenImage) {
		t.Errorf("short rows: got %v", err)
	}

	bad = img.SkeletonCopy()
	if err := bad.CheckSkeletonValid(); err != nil {
		t.Errorf("skeleton should be valid: %v", err)
	}
	if err := bad.CheckValid(); !codecerrors.Is(err, codecerrors.NullPointer) {
		t.Errorf("nil pixels: got %v", err)
	}

	// Indexed format without a palette.
	bad = img.DeepCopy()
	bad.PixelFormat = PixelFormatBPP8Indexed
	if err := bad.CheckValid(); !codecerrors.Is(err, codecerrors.BrokenImage) {
		t.Errorf("missing palette: got %v", err)
	}
}

func TestMirrorVerticallyTwiceIsIdentity(t *testing.T) {
	img := newTestImage(t)
	orig := append([]byte(nil), img.Pixels...)

	if err := img.MirrorVertically(); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(img.Pixels, orig) {
		t.Fatal("single mirror left pixels unchanged")
	}
	if err := img.MirrorVertically(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pixels, orig) {
		t.Error("double vertical mirror is not identity")
	}
}

func TestMirrorHorizontallyTwiceIsIdentity(t *testing.T) {
	img := newTestImage(t)
	orig := append([]byte(nil), img.Pixels...)

	if err := img.MirrorHorizontally(); err != nil {
		t.Fatal(err)
	}
	// First row becomes pixel2, pixel1, pixel0.
	want := []byte{7, 8, 9, 4, 5, 6, 1, 2, 3}
	if !bytes.Equal(img.Pixels[:9], want) {
		t.Fatalf("mirrored row: got %v, want %v", img.Pixels[:9], want)
	}
	if err := img.MirrorHorizontally(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pixels, orig) {
		t.Error("double horizontal mirror is not identity")
	}
}

func TestMirrorHorizontallySubByte(t *testing.T) {
	img := NewImage()
	img.Width = 3
	img.Height = 1
	img.PixelFormat = PixelFormatBPP4Indexed
	img.BytesPerLine = MinBytesPerLine(3, PixelFormatBPP4Indexed)
	img.Palette = &Palette{PixelFormat: PixelFormatBPP24RGB, Data: make([]byte, 16*3), ColorCount: 16}
	// Pixels 1, 2, 3 packed two per byte.
	img.Pixels = []byte{0x12, 0x30}

	if err := img.MirrorHorizontally(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x32, 0x10}
	if !bytes.Equal(img.Pixels, want) {
		t.Fatalf("got %02x, want %02x", img.Pixels, want)
	}

	if err := img.MirrorHorizontally(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pixels, []byte{0x12, 0x30}) {
		t.Error("double sub-byte mirror is not identity")
	}
}

func TestPaletteColorRGBA(t *testing.T) {
	p := &Palette{
		PixelFormat: PixelFormatBPP24RGB,
		Data:        []byte{10, 20, 30, 40, 50, 60},
		ColorCount:  2,
	}
	r, g, b, a, err := p.ColorRGBA(1)
	if err != nil {
		t.Fatal(err)
	}
	if r != 40 || g != 50 || b != 60 || a != 255 {
		t.Errorf("got %d,%d,%d,%d", r, g, b, a)
	}
	if _, _, _, _, err := p.ColorRGBA(2); !codecerrors.Is(err, codecerrors.BrokenImage) {
		t.Errorf("out of range: got %v", err)
	}
}
