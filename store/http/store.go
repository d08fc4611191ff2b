// Package http provides a BackingStore over a plain HTTP content-addressed
// endpoint. Blobs are served at {base}/blobs/{hex-id} and trees at
// {base}/trees/{hex-id}; response bodies are verified against the requested
// id before they are returned.
package http

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/meigma/objcache/model"
	"github.com/meigma/objcache/store"
)

// defaultMaxObjectSize caps response bodies so a misbehaving server cannot
// exhaust memory. Overridable with WithMaxObjectSize.
const defaultMaxObjectSize = 1 << 30 // 1 GiB

const (
	blobPath = "blobs"
	treePath = "trees"
)

// Store fetches content-addressed objects over HTTP.
type Store struct {
	base    string
	client  *nethttp.Client
	headers nethttp.Header
	maxSize int64
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Store) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Store) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithMaxObjectSize caps the size of a single fetched object in bytes.
func WithMaxObjectSize(n int64) Option {
	return func(s *Store) {
		s.maxSize = n
	}
}

// New creates a Store rooted at base, e.g. "https://objects.example.com".
func New(base string, opts ...Option) (*Store, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", base)
	}

	s := &Store{
		base:    strings.TrimRight(base, "/"),
		client:  nethttp.DefaultClient,
		maxSize: defaultMaxObjectSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.maxSize <= 0 {
		s.maxSize = defaultMaxObjectSize
	}
	return s, nil
}

// FetchBlob retrieves the blob identified by id.
func (s *Store) FetchBlob(ctx context.Context, id model.ObjectID) (*model.Blob, error) {
	contents, err := s.fetch(ctx, blobPath, id)
	if err != nil {
		return nil, err
	}
	if model.ComputeID(contents) != id {
		return nil, fmt.Errorf("blob %s: response does not hash to the requested id", id.Short())
	}
	return model.NewBlobWithID(id, contents), nil
}

// FetchTree retrieves the tree identified by id.
func (s *Store) FetchTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	data, err := s.fetch(ctx, treePath, id)
	if err != nil {
		return nil, err
	}
	tree, err := model.UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id.Short(), err)
	}
	if tree.ID() != id {
		return nil, fmt.Errorf("tree %s: response decodes to id %s", id.Short(), tree.ID().Short())
	}
	return tree, nil
}

func (s *Store) fetch(ctx context.Context, kind string, id model.ObjectID) ([]byte, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, s.base+"/"+kind+"/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case nethttp.StatusOK:
		// ok
	case nethttp.StatusNotFound:
		return nil, fmt.Errorf("%s/%s: %w", kind, id.Short(), store.ErrObjectNotFound)
	default:
		return nil, fmt.Errorf("fetch %s/%s: %s", kind, id.Short(), resp.Status)
	}

	if resp.ContentLength > s.maxSize {
		return nil, fmt.Errorf("%s/%s: size %d exceeds limit %d", kind, id.Short(), resp.ContentLength, s.maxSize)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", kind, id.Short(), err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%s/%s: response exceeds size limit %d", kind, id.Short(), s.maxSize)
	}
	return data, nil
}
