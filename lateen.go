// Package lateen is a pluggable image-codec framework: it discovers codecs,
// dispatches by extension, MIME type or magic number, and drives the codec
// state machine to load and save still and animated images.
package lateen

import (
	"sync"

	"github.com/lateen-io/lateen/codecs/all"
	"github.com/lateen-io/lateen/config"
	"github.com/lateen-io/lateen/core"
	"github.com/lateen-io/lateen/driver"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/registry"
	"github.com/lateen-io/lateen/sio"
)

// DefaultConfig returns the production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Context owns the codec registry and the observation hooks.  Create one per
// process (or per isolation domain) with NewContext and release it with
// Close.  A Context is safe for concurrent use; individual load and save
// operations are not shared across goroutines.
type Context struct {
	cfg     config.Config
	reg     *registry.Registry
	logger  core.Logger
	metrics core.MetricsCollector
	hooks   []core.Hook

	mu      sync.Mutex
	lastErr error
	closed  bool
}

// NewContext builds a context: registers the built-in codecs and scans the
// configured directories for codec manifests.  With eager discovery every
// external codec module is loaded immediately so binding failures surface
// here instead of on first use.
func NewContext(cfg config.Config) (*Context, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, codecerrors.Wrap(codecerrors.InvalidArgument, "lateen.new_context", err)
	}

	ctx := &Context{cfg: cfg, logger: core.NopLogger{}}
	ctx.reg = registry.NewRegistry(ctx.logger)
	if err := all.Register(ctx.reg); err != nil {
		return nil, err
	}
	if err := ctx.reg.DiscoverDirs(config.ResolveSearchPaths(cfg)); err != nil {
		return nil, err
	}
	if cfg.Discovery == config.DiscoveryEager {
		for _, d := range ctx.reg.Descriptors() {
			if _, err := d.Codec(); err != nil {
				return nil, err
			}
		}
	}
	return ctx, nil
}

// Close releases the context.  Further probes, loads and saves fail with
// INVALID_ARGUMENT; the registry accessors and codec lookups keep working.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.lastErr = nil
	return nil
}

// SetLogger attaches a structured logger.
func (c *Context) SetLogger(l core.Logger) { c.logger = l }

// SetMetrics attaches a metrics collector.
func (c *Context) SetMetrics(m core.MetricsCollector) { c.metrics = m }

// AddHook registers an observer around every codec entry point.
func (c *Context) AddHook(h core.Hook) { c.hooks = append(c.hooks, h) }

// Registry exposes the underlying registry for custom registration.
func (c *Context) Registry() *registry.Registry { return c.reg }

// Codecs lists every registered descriptor in registry order.
func (c *Context) Codecs() []*registry.Descriptor { return c.reg.Descriptors() }

// LastError returns the most recent failure recorded by this context.
func (c *Context) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Context) fail(err error) error {
	if err == nil || codecerrors.IsNoMoreFrames(err) {
		return err
	}
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func (c *Context) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return codecerrors.New(codecerrors.InvalidArgument, "lateen.context_closed")
	}
	return nil
}

func (c *Context) driverOptions() []driver.Option {
	opts := []driver.Option{driver.WithLogger(c.logger)}
	if c.metrics != nil {
		opts = append(opts, driver.WithMetrics(c.metrics))
	}
	for _, h := range c.hooks {
		opts = append(opts, driver.WithHook(h))
	}
	return opts
}

// ── codec resolution ──────────────────────────────────────────────────────────

// CodecByExtension resolves the highest-priority codec for a file extension.
func (c *Context) CodecByExtension(ext string) (*registry.Descriptor, error) {
	return c.reg.FirstByExtension(ext)
}

// CodecByMime resolves the highest-priority codec for a MIME type.
func (c *Context) CodecByMime(mime string) (*registry.Descriptor, error) {
	return c.reg.FirstByMime(mime)
}

// CodecForStream resolves a codec by probing magic bytes, falling back to the
// path extension.  When both match different codecs the magic match wins.
func (c *Context) CodecForStream(s sio.Stream, path string) (*registry.Descriptor, error) {
	if d, err := c.reg.ByMagic(s); err == nil {
		return d, nil
	}
	return c.reg.ByPath(path)
}

// ── load path ─────────────────────────────────────────────────────────────────

// Probe reads only the first frame's header from path: geometry, pixel
// format, metadata, and the source-image descriptor, without decoding pixels.
func (c *Context) Probe(path string) (*core.Image, *registry.Descriptor, error) {
	if err := c.check(); err != nil {
		return nil, nil, err
	}
	s, err := sio.OpenRead(path)
	if err != nil {
		return nil, nil, c.fail(err)
	}
	defer s.Close()

	desc, err := c.CodecForStream(s, path)
	if err != nil {
		return nil, nil, c.fail(err)
	}
	img, err := c.probeStream(s, desc)
	if err != nil {
		return nil, nil, c.fail(err)
	}
	return img, desc, nil
}

func (c *Context) probeStream(s sio.Stream, desc *registry.Descriptor) (*core.Image, error) {
	loader, err := driver.NewLoader(desc, s, core.DefaultLoadOptions(), c.driverOptions()...)
	if err != nil {
		return nil, err
	}
	defer loader.Stop()
	if err := loader.Start(); err != nil {
		return nil, err
	}
	img, err := loader.NextFrame()
	if err != nil {
		return nil, err
	}
	// Header only: the pixel buffer stays unread.
	img.Pixels = nil
	return img, nil
}

// LoadFromFile loads the first frame of path.
func (c *Context) LoadFromFile(path string) (*core.Image, error) {
	return c.loadFile(path, core.DefaultLoadOptions())
}

// LoadAllFromFile loads every frame of path, in file order.
func (c *Context) LoadAllFromFile(path string) ([]*core.Image, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	s, err := sio.OpenRead(path)
	if err != nil {
		return nil, c.fail(err)
	}
	defer s.Close()

	desc, err := c.CodecForStream(s, path)
	if err != nil {
		return nil, c.fail(err)
	}
	frames, err := c.loadAll(s, desc, core.DefaultLoadOptions())
	if err != nil {
		return nil, c.fail(err)
	}
	return frames, nil
}

// LoadFromMemory loads the first frame of an in-memory file.
func (c *Context) LoadFromMemory(data []byte) (*core.Image, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	s := sio.ReadMemory(data)
	desc, err := c.reg.ByMagic(s)
	if err != nil {
		return nil, c.fail(err)
	}
	img, err := c.loadSingle(s, desc, core.DefaultLoadOptions())
	if err != nil {
		return nil, c.fail(err)
	}
	return img, nil
}

// LoadWithOptions loads the first frame from an open stream with an explicit
// codec and options.
func (c *Context) LoadWithOptions(s sio.Stream, desc *registry.Descriptor, options core.LoadOptions) (*core.Image, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	img, err := c.loadSingle(s, desc, options)
	if err != nil {
		return nil, c.fail(err)
	}
	return img, nil
}

func (c *Context) loadFile(path string, options core.LoadOptions) (*core.Image, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	s, err := sio.OpenRead(path)
	if err != nil {
		return nil, c.fail(err)
	}
	defer s.Close()

	desc, err := c.CodecForStream(s, path)
	if err != nil {
		return nil, c.fail(err)
	}
	img, err := c.loadSingle(s, desc, options)
	if err != nil {
		return nil, c.fail(err)
	}
	return img, nil
}

func (c *Context) loadSingle(s sio.Stream, desc *registry.Descriptor, options core.LoadOptions) (*core.Image, error) {
	loader, err := driver.NewLoader(desc, s, options, c.driverOptions()...)
	if err != nil {
		return nil, err
	}
	defer loader.Stop()
	if err := loader.Start(); err != nil {
		return nil, err
	}
	if _, err := loader.NextFrame(); err != nil {
		return nil, err
	}
	return loader.ReadFrame()
}

func (c *Context) loadAll(s sio.Stream, desc *registry.Descriptor, options core.LoadOptions) ([]*core.Image, error) {
	loader, err := driver.NewLoader(desc, s, options, c.driverOptions()...)
	if err != nil {
		return nil, err
	}
	defer loader.Stop()
	if err := loader.Start(); err != nil {
		return nil, err
	}

	var frames []*core.Image
	for {
		if _, err := loader.NextFrame(); err != nil {
			if codecerrors.IsNoMoreFrames(err) {
				return frames, nil
			}
			return nil, err
		}
		img, err := loader.ReadFrame()
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
}

// ── save path ─────────────────────────────────────────────────────────────────

// SaveToFile saves img to path, resolving the codec from the extension.
func (c *Context) SaveToFile(path string, img *core.Image) error {
	return c.SaveAllToFile(path, []*core.Image{img})
}

// SaveAllToFile saves a frame sequence to path.
func (c *Context) SaveAllToFile(path string, frames []*core.Image) error {
	if err := c.check(); err != nil {
		return err
	}
	desc, err := c.reg.ByPath(path)
	if err != nil {
		return c.fail(err)
	}
	s, err := sio.OpenWrite(path)
	if err != nil {
		return c.fail(err)
	}
	defer s.Close()
	return c.fail(c.saveAll(s, desc, frames, core.DefaultSaveOptions()))
}

// SaveToMemory saves img into a caller-owned growable buffer, resolving the
// codec by looking codecName up as a file extension (e.g. "png").
func (c *Context) SaveToMemory(dst *[]byte, codecName string, img *core.Image) error {
	if err := c.check(); err != nil {
		return err
	}
	desc, err := c.reg.FirstByExtension(codecName)
	if err != nil {
		return c.fail(err)
	}
	s := sio.GrowMemory(dst)
	return c.fail(c.saveAll(s, desc, []*core.Image{img}, core.DefaultSaveOptions()))
}

// SaveWithOptions saves a frame sequence to an open stream with an explicit
// codec and options.
func (c *Context) SaveWithOptions(s sio.Stream, desc *registry.Descriptor, frames []*core.Image, options core.SaveOptions) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.fail(c.saveAll(s, desc, frames, options))
}

func (c *Context) saveAll(s sio.Stream, desc *registry.Descriptor, frames []*core.Image, options core.SaveOptions) error {
	if len(frames) == 0 {
		return codecerrors.New(codecerrors.InvalidArgument, "lateen.save")
	}
	saver, err := driver.NewSaver(desc, s, options, c.driverOptions()...)
	if err != nil {
		return err
	}
	defer saver.Stop()
	if err := saver.Start(); err != nil {
		return err
	}
	for _, img := range frames {
		if err := saver.WriteFrame(img); err != nil {
			return err
		}
	}
	return saver.Stop()
}
