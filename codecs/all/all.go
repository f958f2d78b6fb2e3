// Package all registers every built-in codec.
package all

import (
	"github.com/lateen-io/lateen/codecs/bmp"
	"github.com/lateen-io/lateen/codecs/gif"
	"github.com/lateen-io/lateen/codecs/jpeg"
	"github.com/lateen-io/lateen/codecs/png"
	"github.com/lateen-io/lateen/codecs/tiff"
	"github.com/lateen-io/lateen/codecs/webp"
	"github.com/lateen-io/lateen/registry"
)

// Register adds all built-in codecs to r.  The optional libvips backend is
// not included; see codecs/vips.
func Register(r *registry.Registry) error {
	for _, register := range []func(*registry.Registry) error{
		bmp.Register,
		gif.Register,
		jpeg.Register,
		png.Register,
		tiff.Register,
		webp.Register,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}
