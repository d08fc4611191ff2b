// Package local provides a disk-backed object store. It sits between the
// in-memory caches and the backing store as a second tier: objects fetched
// from the backing store are written here so later processes start warm.
//
// Objects are stored zstd-compressed in per-kind directories, sharded by
// the leading hex characters of the object id. Writes go through a temp
// file and rename, so readers never observe partial content. Reads verify
// the decompressed bytes against the id and treat any mismatch as a miss.
package local

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/objcache/model"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700

	blobDir = "blobs"
	treeDir = "trees"
)

// Store is a content-addressed object store rooted at a directory.
type Store struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	logger         *slog.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Option configures a Store.
type Option func(*Store)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(s *Store) {
		s.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for store directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// WithLogger sets a logger for the store. If nil, logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store dir is empty")
	}
	s := &Store{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, err
	}

	var err error
	if s.enc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1)); err != nil {
		return nil, err
	}
	if s.dec, err = zstd.NewReader(nil); err != nil {
		return nil, err
	}
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// GetBlob retrieves a blob by id. Unreadable or corrupt entries report a
// miss; the corrupt file is removed so the next write can replace it.
func (s *Store) GetBlob(id model.ObjectID) (*model.Blob, bool) {
	contents, ok := s.read(blobDir, id)
	if !ok {
		return nil, false
	}
	if model.ComputeID(contents) != id {
		s.discardCorrupt(blobDir, id)
		return nil, false
	}
	return model.NewBlobWithID(id, contents), true
}

// PutBlob stores a blob. Writing an already-present blob is a no-op.
func (s *Store) PutBlob(b *model.Blob) error {
	return s.write(blobDir, b.ID(), b.Contents())
}

// GetTree retrieves a tree by id. Unreadable or corrupt entries report a
// miss; the corrupt file is removed so the next write can replace it.
func (s *Store) GetTree(id model.ObjectID) (*model.Tree, bool) {
	data, ok := s.read(treeDir, id)
	if !ok {
		return nil, false
	}
	tree, err := model.UnmarshalTree(data)
	if err != nil || tree.ID() != id {
		s.discardCorrupt(treeDir, id)
		return nil, false
	}
	return tree, true
}

// PutTree stores a tree. Writing an already-present tree is a no-op.
func (s *Store) PutTree(tr *model.Tree) error {
	data, err := tr.MarshalBinary()
	if err != nil {
		return err
	}
	return s.write(treeDir, tr.ID(), data)
}

func (s *Store) read(kind string, id model.ObjectID) ([]byte, bool) {
	path := s.path(kind, id)
	compressed, err := os.ReadFile(path) //nolint:gosec // path is derived from the id, not user input
	if err != nil {
		return nil, false
	}
	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		s.discardCorrupt(kind, id)
		return nil, false
	}
	return data, true
}

func (s *Store) write(kind string, id model.ObjectID, data []byte) error {
	path := s.path(kind, id)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "store-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(s.enc.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// A concurrent writer winning the rename race is success.
		if _, statErr := os.Stat(path); statErr == nil {
			_ = os.Remove(tmpPath)
			return nil
		}
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) discardCorrupt(kind string, id model.ObjectID) {
	path := s.path(kind, id)
	s.log().Warn("removing corrupt object file", "path", path, "id", id.Short())
	_ = os.Remove(path)
}

func (s *Store) path(kind string, id model.ObjectID) string {
	hexID := id.String()
	if s.shardPrefixLen <= 0 {
		return filepath.Join(s.dir, kind, hexID)
	}
	prefixLen := s.shardPrefixLen
	if prefixLen > len(hexID) {
		prefixLen = len(hexID)
	}
	return filepath.Join(s.dir, kind, hexID[:prefixLen], hexID)
}
