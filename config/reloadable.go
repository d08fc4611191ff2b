package config

import (
	"sync/atomic"

	"github.com/meigma/objcache"
)

// Reloadable is a configuration file that can be re-read while the caches
// bound to it keep running. The limits views it serves read the latest
// loaded configuration, so a reload takes effect on each cache's next
// insert without restarting anything.
type Reloadable struct {
	path    string
	current atomic.Pointer[Config]
}

// NewReloadable loads the configuration file at path.
func NewReloadable(path string) (*Reloadable, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	r := &Reloadable{path: path}
	r.current.Store(&cfg)
	return r, nil
}

// Current returns the most recently loaded configuration.
func (r *Reloadable) Current() Config {
	return *r.current.Load()
}

// Reload re-reads the configuration file. On failure the previous
// configuration stays in effect and the error is returned.
func (r *Reloadable) Reload() error {
	cfg, err := Load(r.path)
	if err != nil {
		return err
	}
	r.current.Store(&cfg)
	return nil
}

// BlobCacheLimits returns a live view of the blob cache bounds.
func (r *Reloadable) BlobCacheLimits() objcache.LimitsSource {
	return objcache.LimitsFunc(func() objcache.Limits {
		return r.Current().BlobCacheLimits()
	})
}

// TreeCacheLimits returns a live view of the tree cache bounds.
func (r *Reloadable) TreeCacheLimits() objcache.LimitsSource {
	return objcache.LimitsFunc(func() objcache.Limits {
		return r.Current().TreeCacheLimits()
	})
}
