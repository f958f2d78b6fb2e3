package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lateen-io/lateen/core"
	codecerrors "github.com/lateen-io/lateen/errors"
	"github.com/lateen-io/lateen/sio"
)

// MagicBufferSize is how many bytes the magic-number probe reads from offset 0.
const MagicBufferSize = 16

// Registry is the process-level index over codec descriptors.  It is safe for
// concurrent use after discovery.
type Registry struct {
	mu          sync.RWMutex
	descriptors []*Descriptor
	byExtension map[string][]*Descriptor
	byMime      map[string][]*Descriptor
	logger      core.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger core.Logger) *Registry {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Registry{
		byExtension: make(map[string][]*Descriptor),
		byMime:      make(map[string][]*Descriptor),
		logger:      logger,
	}
}

// Register validates and inserts a descriptor.  Descriptors are kept ordered
// by priority then name, so multi-match lookups are deterministic: the first
// descriptor in registry order wins.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil {
		return codecerrors.New(codecerrors.NullPointer, "registry.register")
	}
	if d.Layout != core.CodecLayoutVersion {
		return codecerrors.Newf(codecerrors.UnsupportedCodecLayout, "registry.register",
			"codec %q declares layout %d, host binds %d", d.Name, d.Layout, core.CodecLayoutVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.descriptors = append(r.descriptors, d)
	sort.SliceStable(r.descriptors, func(i, j int) bool {
		if r.descriptors[i].Priority != r.descriptors[j].Priority {
			return r.descriptors[i].Priority < r.descriptors[j].Priority
		}
		return r.descriptors[i].Name < r.descriptors[j].Name
	})

	r.rebuildIndexes()
	r.logger.Debug("registry.register", "codec", d.Name, "priority", d.Priority)
	return nil
}

// rebuildIndexes regenerates the multimaps in registry order.  Called with
// the lock held.
func (r *Registry) rebuildIndexes() {
	r.byExtension = make(map[string][]*Descriptor)
	r.byMime = make(map[string][]*Descriptor)
	for _, d := range r.descriptors {
		for _, ext := range d.Extensions {
			ext = strings.ToLower(ext)
			r.byExtension[ext] = append(r.byExtension[ext], d)
		}
		for _, mime := range d.MimeTypes {
			mime = strings.ToLower(mime)
			r.byMime[mime] = append(r.byMime[mime], d)
		}
	}
}

// DiscoverDirs scans each directory for codec manifests and registers every
// parsed descriptor.  Missing directories are skipped; malformed manifests
// are logged and skipped.
func (r *Registry) DiscoverDirs(dirs []string) error {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			r.logger.Debug("registry.discover.skip_dir", "dir", dir, "error", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ManifestSuffix) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			d, err := ParseManifest(path)
			if err != nil {
				r.logger.Warn("registry.discover.bad_manifest", "path", path, "error", err)
				continue
			}
			// Module paths in manifests are relative to the manifest itself.
			if d.ModulePath != "" && !filepath.IsAbs(d.ModulePath) {
				d.ModulePath = filepath.Join(dir, d.ModulePath)
			}
			if err := r.Register(d); err != nil {
				r.logger.Warn("registry.discover.reject", "path", path, "error", err)
			}
		}
	}
	return nil
}

// Descriptors returns the full descriptor list in registry order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// ByExtension returns all descriptors claiming the extension (no leading
// dot), lowercased.
func (r *Registry) ByExtension(ext string) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExtension[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// ByMime returns all descriptors claiming the MIME type.
func (r *Registry) ByMime(mime string) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byMime[strings.ToLower(mime)]
}

// ByPath matches the suffix after the last '.' in path.
func (r *Registry) ByPath(path string) (*Descriptor, error) {
	ext := filepath.Ext(path)
	if ext == "" || ext == "." {
		return nil, codecerrors.Newf(codecerrors.InvalidArgument, "registry.by_path",
			"path %q has no extension", path)
	}
	return first(r.ByExtension(ext), "registry.by_path", ext)
}

// FirstByExtension returns the highest-priority descriptor for the extension.
func (r *Registry) FirstByExtension(ext string) (*Descriptor, error) {
	return first(r.ByExtension(ext), "registry.by_extension", ext)
}

// FirstByMime returns the highest-priority descriptor for the MIME type.
func (r *Registry) FirstByMime(mime string) (*Descriptor, error) {
	return first(r.ByMime(mime), "registry.by_mime", mime)
}

func first(list []*Descriptor, op, what string) (*Descriptor, error) {
	if len(list) == 0 {
		return nil, codecerrors.Newf(codecerrors.CodecNotFound, op, "no codec for %q", what)
	}
	return list[0], nil
}

// ByMagic probes the first MagicBufferSize bytes of s, seeks back to the
// start, and returns the first descriptor whose magic pattern matches.
func (r *Registry) ByMagic(s sio.Stream) (*Descriptor, error) {
	buf := make([]byte, MagicBufferSize)
	if err := sio.StrictRead(s, buf); err != nil {
		s.Seek(0, sio.SeekStart)
		return nil, err
	}
	if _, err := s.Seek(0, sio.SeekStart); err != nil {
		return nil, err
	}
	return r.ByMagicBytes(buf)
}

// ByMagicBytes matches buf against all registered magic patterns.
func (r *Registry) ByMagicBytes(buf []byte) (*Descriptor, error) {
	hex := FormatMagic(buf)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.descriptors {
		for _, pattern := range d.MagicNumbers {
			if magicMatches(hex, pattern) {
				r.logger.Debug("registry.by_magic", "codec", d.Name, "magic", pattern)
				return d, nil
			}
		}
	}
	return nil, codecerrors.Newf(codecerrors.CodecNotFound, "registry.by_magic",
		"no codec for magic %q", hex)
}

// FormatMagic renders bytes as space-separated lowercase hex, the canonical
// pattern form.
func FormatMagic(buf []byte) string {
	var b strings.Builder
	for i, c := range buf {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}

// magicMatches prefix-matches a pattern against the probed hex string.  The
// pattern token "??" matches any byte.
func magicMatches(hex, pattern string) bool {
	if pattern == "" {
		return false
	}
	hexTokens := strings.Split(hex, " ")
	patTokens := strings.Split(pattern, " ")
	if len(patTokens) > len(hexTokens) {
		return false
	}
	for i, pt := range patTokens {
		if pt == "??" {
			continue
		}
		if pt != hexTokens[i] {
			return false
		}
	}
	return true
}
