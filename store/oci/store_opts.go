package oci

import (
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// Option configures a Store.
type Option func(*Store)

// WithPlainHTTP enables plain HTTP (no TLS) for the registry.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) Option {
	return func(s *Store) {
		s.plainHTTP = enabled
	}
}

// WithUserAgent sets the User-Agent header for registry requests.
func WithUserAgent(ua string) Option {
	return func(s *Store) {
		s.userAgent = ua
	}
}

// WithCredentials sets static username/password credentials for the
// repository's registry.
func WithCredentials(username, password string) Option {
	return func(s *Store) {
		s.credential = auth.Credential{Username: username, Password: password}
	}
}

// WithToken sets a bearer token for the repository's registry.
func WithToken(token string) Option {
	return func(s *Store) {
		s.credential = auth.Credential{AccessToken: token}
	}
}

// WithCredentialStore sets a credential store consulted per request, e.g.
// one backed by ~/.docker/config.json. It takes precedence over static
// credentials.
func WithCredentialStore(store credentials.Store) Option {
	return func(s *Store) {
		s.credStore = store
	}
}
