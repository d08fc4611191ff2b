// Package oci provides a BackingStore reading content-addressed objects
// from an OCI registry repository.
//
// Objects live in the repository's blob store under their SHA-256 digest,
// which is byte-for-byte the object id. Fetched content is verified against
// the resolved descriptor before it is returned.
package oci

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/meigma/objcache/model"
	"github.com/meigma/objcache/store"
)

const defaultUserAgent = "objcache/1.0"

// Target is the ORAS surface the store reads from: digest resolution plus
// content fetch. A remote repository's blob store satisfies it, as do the
// in-memory stores shipped with ORAS.
type Target interface {
	content.ReadOnlyStorage
	content.Resolver
}

// Store fetches objects from a single OCI repository.
type Store struct {
	target Target

	plainHTTP  bool
	userAgent  string
	credential auth.Credential
	credStore  credentials.Store
}

// New creates a Store reading from the given repository reference,
// e.g. "registry.example.com/team/objects".
func New(repoRef string, opts ...Option) (*Store, error) {
	s := &Store{
		userAgent:  defaultUserAgent,
		credential: auth.EmptyCredential,
	}
	for _, opt := range opts {
		opt(s)
	}

	repo, err := remote.NewRepository(repoRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	repo.PlainHTTP = s.plainHTTP
	repo.Client = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if s.credStore != nil {
				return s.credStore.Get(ctx, hostport)
			}
			return s.credential, nil
		},
		Header: http.Header{
			"User-Agent": []string{s.userAgent},
		},
	}

	s.target = repo.Blobs()
	return s, nil
}

// NewWithTarget creates a Store reading from an in-process ORAS target.
// Intended for tests and for composing with ORAS stores directly.
func NewWithTarget(target Target) (*Store, error) {
	if target == nil {
		return nil, errors.New("oci: nil target")
	}
	return &Store{target: target}, nil
}

// FetchBlob retrieves the blob identified by id.
func (s *Store) FetchBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error) {
	contents, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.NewBlobWithID(id, contents), nil
}

// FetchTree retrieves the tree identified by id.
func (s *Store) FetchTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	data, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := model.UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id.Short(), err)
	}
	return tree, nil
}

// fetch returns the verified bytes for id.
//
// When the target supports it, FetchReference retrieves descriptor and
// content in a single round trip; otherwise resolve and fetch separately.
// Either way the content is digest- and size-checked against the resolved
// descriptor, and the descriptor against the requested id.
func (s *Store) fetch(ctx context.Context, id model.ObjectID) ([]byte, error) {
	dgst := id.Digest()

	if fetcher, ok := s.target.(registry.ReferenceFetcher); ok {
		desc, rc, err := fetcher.FetchReference(ctx, dgst.String())
		if err != nil {
			return nil, mapError(id, err)
		}
		defer rc.Close()
		if desc.Digest != dgst {
			return nil, fmt.Errorf("object %s: resolved to foreign digest %s", id.Short(), desc.Digest)
		}
		data, err := content.ReadAll(rc, desc)
		if err != nil {
			return nil, mapError(id, err)
		}
		return data, nil
	}

	desc, err := s.target.Resolve(ctx, dgst.String())
	if err != nil {
		return nil, mapError(id, err)
	}
	if desc.Digest != dgst {
		return nil, fmt.Errorf("object %s: resolved to foreign digest %s", id.Short(), desc.Digest)
	}
	data, err := content.FetchAll(ctx, s.target, desc)
	if err != nil {
		return nil, mapError(id, err)
	}
	return data, nil
}

// mapError maps ORAS errors to this module's sentinel errors.
func mapError(id model.ObjectID, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("object %s: %w: %v", id.Short(), store.ErrObjectNotFound, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("object %s: %w: %v", id.Short(), store.ErrObjectNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("object %s: %w: %v", id.Short(), ErrUnauthorized, err)
		case http.StatusForbidden:
			return fmt.Errorf("object %s: %w: %v", id.Short(), ErrForbidden, err)
		}
	}
	return fmt.Errorf("object %s: %w", id.Short(), err)
}
