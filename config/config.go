// Package config loads cache bounds from YAML and serves them as live
// views that running caches observe on their next insert.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/meigma/objcache"
)

var (
	// ErrInvalidConfig is returned when a configuration file holds unusable values.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrInvalidSize is returned when a size value cannot be parsed.
	ErrInvalidSize = errors.New("config: invalid size")
)

// Size is a byte count. It unmarshals from a YAML integer (bytes) or a
// human-readable string such as "40MiB" or "1g".
type Size uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int":
		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidSize, value.Value)
		}
		*s = Size(n)
		return nil
	case "!!str":
		n, err := units.RAMInBytes(value.Value)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidSize, value.Value, err)
		}
		*s = Size(n)
		return nil
	default:
		return fmt.Errorf("%w: unexpected %s value", ErrInvalidSize, value.Tag)
	}
}

// String renders the size in human-readable binary units.
func (s Size) String() string {
	return units.BytesSize(float64(s))
}

// CacheConfig bounds one in-memory cache.
type CacheConfig struct {
	// MaximumSize is the total object weight the cache tries to stay
	// under. Accepts bytes or strings like "40MiB".
	MaximumSize Size `yaml:"maximumSize"`

	// MinimumCount is the number of entries retained even when their
	// total weight exceeds MaximumSize.
	MinimumCount int `yaml:"minimumCount"`
}

// Config bounds the in-memory object caches.
type Config struct {
	BlobCache CacheConfig `yaml:"blobCache"`
	TreeCache CacheConfig `yaml:"treeCache"`
}

// Default returns the bounds the filesystem runtime ships with:
// 40 MiB with a 16-entry floor, per cache.
func Default() Config {
	return Config{
		BlobCache: CacheConfig{MaximumSize: 40 << 20, MinimumCount: 16},
		TreeCache: CacheConfig{MaximumSize: 40 << 20, MinimumCount: 16},
	}
}

// Load reads a YAML configuration file. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the config path is operator-supplied
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration bytes over the defaults. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file keeps the defaults.
			return cfg, nil
		}
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BlobCache.MinimumCount < 0 {
		return fmt.Errorf("%w: blobCache.minimumCount %d", ErrInvalidConfig, c.BlobCache.MinimumCount)
	}
	if c.TreeCache.MinimumCount < 0 {
		return fmt.Errorf("%w: treeCache.minimumCount %d", ErrInvalidConfig, c.TreeCache.MinimumCount)
	}
	return nil
}

// BlobCacheLimits returns the blob cache bounds.
func (c Config) BlobCacheLimits() objcache.Limits {
	return objcache.Limits{
		MaximumSize:  uint64(c.BlobCache.MaximumSize),
		MinimumCount: c.BlobCache.MinimumCount,
	}
}

// TreeCacheLimits returns the tree cache bounds.
func (c Config) TreeCacheLimits() objcache.Limits {
	return objcache.Limits{
		MaximumSize:  uint64(c.TreeCache.MaximumSize),
		MinimumCount: c.TreeCache.MinimumCount,
	}
}
