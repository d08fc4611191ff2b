package http_test

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/meigma/objcache/model"
	"github.com/meigma/objcache/store"
	objhttp "github.com/meigma/objcache/store/http"
)

var _ store.BackingStore = (*objhttp.Store)(nil)

func newObjectServer(t *testing.T, objects map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, ok := objects[r.URL.Path]
		if !ok {
			nethttp.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchBlob(t *testing.T) {
	contents := []byte("served over http")
	id := model.ComputeID(contents)
	server := newObjectServer(t, map[string][]byte{
		"/blobs/" + id.String(): contents,
	})

	s, err := objhttp.New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	blob, err := s.FetchBlob(context.Background(), id)
	if err != nil {
		t.Fatalf("FetchBlob() error = %v", err)
	}
	if string(blob.Contents()) != string(contents) {
		t.Fatalf("FetchBlob() contents = %q, want %q", blob.Contents(), contents)
	}
	if blob.ID() != id {
		t.Fatalf("FetchBlob() id = %s, want %s", blob.ID(), id)
	}
}

func TestFetchBlobNotFound(t *testing.T) {
	server := newObjectServer(t, nil)

	s, err := objhttp.New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.FetchBlob(context.Background(), model.ComputeID([]byte("absent")))
	if !errors.Is(err, store.ErrObjectNotFound) {
		t.Fatalf("FetchBlob() error = %v, want ErrObjectNotFound", err)
	}
}

func TestFetchBlobVerifiesContent(t *testing.T) {
	id := model.ComputeID([]byte("what we asked for"))
	server := newObjectServer(t, map[string][]byte{
		"/blobs/" + id.String(): []byte("what we got instead"),
	})

	s, err := objhttp.New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.FetchBlob(context.Background(), id)
	if err == nil {
		t.Fatal("FetchBlob() error = nil for mismatched content")
	}
	if errors.Is(err, store.ErrObjectNotFound) {
		t.Fatalf("FetchBlob() error = %v, want a verification error, not ErrObjectNotFound", err)
	}
}

func TestFetchTree(t *testing.T) {
	tree, err := model.NewTree([]model.TreeEntry{
		{Name: "main.go", ID: model.ComputeID([]byte("main")), Type: model.EntryTypeRegularFile},
	})
	if err != nil {
		t.Fatalf("NewTree() error = %v", err)
	}
	data, err := tree.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	server := newObjectServer(t, map[string][]byte{
		"/trees/" + tree.ID().String(): data,
	})

	s, err := objhttp.New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := s.FetchTree(context.Background(), tree.ID())
	if err != nil {
		t.Fatalf("FetchTree() error = %v", err)
	}
	if got.ID() != tree.ID() {
		t.Fatalf("FetchTree() id = %s, want %s", got.ID(), tree.ID())
	}
	if _, ok := got.Find("main.go"); !ok {
		t.Fatal(`Find("main.go") ok = false, want true`)
	}
}

func TestFetchTreeRejectsWrongID(t *testing.T) {
	tree, err := model.NewTree([]model.TreeEntry{
		{Name: "a", ID: model.ComputeID([]byte("a")), Type: model.EntryTypeRegularFile},
	})
	if err != nil {
		t.Fatalf("NewTree() error = %v", err)
	}
	data, err := tree.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	// Serve the tree under an id it does not hash to.
	wrongID := model.ComputeID([]byte("some other tree"))
	server := newObjectServer(t, map[string][]byte{
		"/trees/" + wrongID.String(): data,
	})

	s, err := objhttp.New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.FetchTree(context.Background(), wrongID); err == nil {
		t.Fatal("FetchTree() error = nil for mismatched tree id")
	}
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	contents := []byte("authorized")
	id := model.ComputeID(contents)

	var gotAuth string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write(contents)
	}))
	t.Cleanup(server.Close)

	s, err := objhttp.New(server.URL, objhttp.WithHeader("Authorization", "Bearer token"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.FetchBlob(context.Background(), id); err != nil {
		t.Fatalf("FetchBlob() error = %v", err)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("Authorization header = %q, want %q", gotAuth, "Bearer token")
	}
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	contents := []byte("this body is far too large for the configured cap")
	id := model.ComputeID(contents)
	server := newObjectServer(t, map[string][]byte{
		"/blobs/" + id.String(): contents,
	})

	s, err := objhttp.New(server.URL, objhttp.WithMaxObjectSize(8))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.FetchBlob(context.Background(), id); err == nil {
		t.Fatal("FetchBlob() error = nil for oversized response")
	}
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		nethttp.Error(w, "boom", nethttp.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	s, err := objhttp.New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.FetchBlob(context.Background(), model.ComputeID([]byte("x")))
	if err == nil {
		t.Fatal("FetchBlob() error = nil for server error")
	}
	if errors.Is(err, store.ErrObjectNotFound) {
		t.Fatalf("FetchBlob() error = %v, want a transport error, not ErrObjectNotFound", err)
	}
}

func TestNewRejectsBadBase(t *testing.T) {
	if _, err := objhttp.New("ftp://objects.example.com"); err == nil {
		t.Fatal("New() error = nil for non-http scheme")
	}
	if _, err := objhttp.New("://not-a-url"); err == nil {
		t.Fatal("New() error = nil for unparseable url")
	}
}
