// Package registry implements codec discovery and dispatch: descriptor
// indexing by extension, MIME type and magic number, manifest parsing, and
// lazy loading of codec modules.
package registry

import (
	"sync"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
)

// Descriptor is the immutable record identifying a codec and its
// capabilities.  Its lifetime equals the registry's.
type Descriptor struct {
	Name        string
	Version     string
	Layout      int
	Priority    int
	Description string

	Extensions   []string // lowercase, no leading dot
	MimeTypes    []string // lowercase
	MagicNumbers []string // space-separated lowercase hex, "??" = don't care

	// ModulePath points at a loadable codec module for externally shipped
	// codecs.  Built-in codecs set Impl directly and leave it empty.
	ModulePath string

	// Impl is the bound codec.  Nil until the module is loaded.
	Impl core.Codec

	loadOnce sync.Once
	loadErr  error
}

// Codec returns the bound codec implementation, loading the codec module on
// first use for manifest-discovered codecs.
func (d *Descriptor) Codec() (core.Codec, error) {
	d.loadOnce.Do(func() {
		if d.Impl != nil {
			return
		}
		if d.ModulePath == "" {
			d.loadErr = codecerrors.Newf(codecerrors.CannotLoadCodecModule, "registry.load",
				"codec %q has neither an implementation nor a module path", d.Name)
			return
		}
		d.Impl, d.loadErr = openCodecModule(d.ModulePath)
	})
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	return d.Impl, nil
}
