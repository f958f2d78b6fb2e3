package registry

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	codecerrors "github.com/lateen-io/lateen/errors"
)

// ManifestSuffix is the file name suffix codec manifests carry.
const ManifestSuffix = ".codec.info"

// ParseManifest reads a codec manifest: line-based `key = value` under a
// `[codec]` section header, `;`-separated list values, magic numbers as
// quoted whitespace-separated lowercase hex prefixes.
func ParseManifest(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, codecerrors.Wrap(codecerrors.OpenFile, "manifest.open", err)
	}
	defer f.Close()

	d := &Descriptor{}
	section := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "codec" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, codecerrors.Newf(codecerrors.InvalidArgument, "manifest.parse",
				"%s: malformed line %q", path, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "name":
			d.Name = value
		case "version":
			d.Version = value
		case "description":
			d.Description = value
		case "layout":
			d.Layout, err = strconv.Atoi(value)
			if err != nil {
				return nil, codecerrors.Newf(codecerrors.InvalidArgument, "manifest.parse",
					"%s: bad layout %q", path, value)
			}
		case "priority":
			d.Priority, err = strconv.Atoi(value)
			if err != nil {
				return nil, codecerrors.Newf(codecerrors.InvalidArgument, "manifest.parse",
					"%s: bad priority %q", path, value)
			}
		case "extensions":
			d.Extensions = splitList(value, strings.ToLower)
		case "mime-types":
			d.MimeTypes = splitList(value, strings.ToLower)
		case "magic-numbers":
			d.MagicNumbers = splitList(value, normalizeMagic)
		case "module":
			d.ModulePath = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, codecerrors.Wrap(codecerrors.ReadIO, "manifest.read", err)
	}

	if d.Name == "" {
		return nil, codecerrors.Newf(codecerrors.InvalidArgument, "manifest.parse",
			"%s: missing codec name", path)
	}
	return d, nil
}

func splitList(value string, normalize func(string) string) []string {
	parts := strings.Split(value, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"`)
		if p == "" {
			continue
		}
		out = append(out, normalize(p))
	}
	return out
}

func normalizeMagic(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
