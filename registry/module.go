package registry

import (
	"plugin"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
)

// codecSymbol is the single symbol a loadable codec module exports: a
// package-level variable implementing core.Codec.
const codecSymbol = "Codec"

// openCodecModule loads a codec module and resolves its entry point.
func openCodecModule(path string) (core.Codec, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.CannotLoadCodecModule, "registry.open_module", err)
	}

	sym, err := p.Lookup(codecSymbol)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.MissingEntryPoint, "registry.lookup_entry", err)
	}

	switch c := sym.(type) {
	case core.Codec:
		return c, nil
	case *core.Codec:
		if *c != nil {
			return *c, nil
		}
	}
	return nil, codecerrors.Newf(codecerrors.MissingEntryPoint, "registry.lookup_entry",
		"%s: symbol %q does not implement the codec interface", path, codecSymbol)
}
