// Package config carries the framework configuration: codec discovery paths
// and loading behavior.  All fields have safe defaults so callers can start
// with Config{} and override only what they need.
package config

import (
	"errors"
	"os"
	"strings"
)

// EnvSearchPaths is the environment variable naming extra codec directories,
// separated by the OS path-list separator.
const EnvSearchPaths = "LATEEN_CODECS_PATH"

// DefaultSearchPath is the compiled-in codec directory.
const DefaultSearchPath = "/usr/local/lib/lateen/codecs"

// DiscoveryMode selects when codec modules are bound.
type DiscoveryMode int

const (
	// DiscoveryLazy parses manifests up front but loads codec modules on
	// first use.
	DiscoveryLazy DiscoveryMode = iota
	// DiscoveryEager loads every discovered codec module immediately, so
	// load failures surface at init time.
	DiscoveryEager
)

// Config is the top-level configuration struct.
type Config struct {
	// SearchPaths are explicit codec directories scanned in addition to the
	// default path and the environment variable.
	SearchPaths []string

	// SkipDefaultPaths disables the compiled-in directory and the
	// environment variable, leaving only SearchPaths.
	SkipDefaultPaths bool

	Discovery DiscoveryMode

	// LogLevel: "debug", "info", "warn", "error".
	LogLevel string
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		Discovery: DiscoveryLazy,
		LogLevel:  "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	switch c.Discovery {
	case DiscoveryLazy, DiscoveryEager:
	default:
		return errors.New("config: unknown discovery mode")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("config: LogLevel must be debug, info, warn, or error")
	}
	return nil
}

// ResolveSearchPaths combines the compiled-in default, the environment
// variable, and explicit paths, in that order.
func ResolveSearchPaths(c Config) []string {
	var paths []string
	if !c.SkipDefaultPaths {
		paths = append(paths, DefaultSearchPath)
		if env := os.Getenv(EnvSearchPaths); env != "" {
			for _, p := range strings.Split(env, string(os.PathListSeparator)) {
				if p = strings.TrimSpace(p); p != "" {
					paths = append(paths, p)
				}
			}
		}
	}
	return append(paths, c.SearchPaths...)
}
