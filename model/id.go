// Package model defines the immutable object types held by a
// content-addressed object store: file blobs and directory trees, both
// identified by an [ObjectID].
//
// Values in this package are immutable once constructed and safe to share
// across goroutines without synchronization.
package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// IDLength is the byte length of an ObjectID.
const IDLength = sha256.Size

// ObjectID is the content hash identifying an object.
//
// IDs are fixed-width SHA-256 hashes: equality and ordering are byte-wise,
// and the zero value is a valid (if meaningless) ID. ObjectID is a
// comparable value type and may be used directly as a map key.
type ObjectID [IDLength]byte

// ComputeID returns the ObjectID of the given content.
func ComputeID(data []byte) ObjectID {
	return sha256.Sum256(data)
}

// ParseID parses the lowercase or uppercase hex form of an ObjectID.
func ParseID(s string) (ObjectID, error) {
	if hex.DecodedLen(len(s)) != IDLength {
		return ObjectID{}, fmt.Errorf("%w: %q has length %d", ErrInvalidID, s, len(s))
	}
	var id ObjectID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ObjectID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}
	return id, nil
}

// IDFromBytes converts a raw hash to an ObjectID.
func IDFromBytes(b []byte) (ObjectID, error) {
	if len(b) != IDLength {
		return ObjectID{}, fmt.Errorf("%w: %d bytes", ErrInvalidID, len(b))
	}
	var id ObjectID
	copy(id[:], b)
	return id, nil
}

// IDFromDigest converts an OCI digest to an ObjectID.
// Only sha256 digests are supported.
func IDFromDigest(d digest.Digest) (ObjectID, error) {
	if err := d.Validate(); err != nil {
		return ObjectID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return ObjectID{}, fmt.Errorf("%w: unsupported digest algorithm %q", ErrInvalidID, d.Algorithm())
	}
	return ParseID(d.Encoded())
}

// Digest returns the OCI digest form of the ID.
func (id ObjectID) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, id.String())
}

// String returns the lowercase hex form of the ID.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns an abbreviated hex form of the ID for log output.
func (id ObjectID) Short() string {
	return hex.EncodeToString(id[:4])
}

// Bytes returns a copy of the raw hash bytes.
func (id ObjectID) Bytes() []byte {
	return id[:]
}

// Compare orders IDs byte-wise. It returns -1 if id sorts before other,
// 0 if they are equal, and 1 otherwise.
func (id ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(id[:], other[:])
}
