package model

// Blob is an immutable file content object.
//
// A Blob pairs raw content bytes with the ObjectID derived from them.
// Blobs are shared freely between caches, stores, and callers; the
// contents must never be modified after construction.
type Blob struct {
	id       ObjectID
	contents []byte
}

// NewBlob creates a Blob from contents, computing its ID.
// The Blob takes ownership of contents; callers must not modify it afterwards.
func NewBlob(contents []byte) *Blob {
	return &Blob{
		id:       ComputeID(contents),
		contents: contents,
	}
}

// NewBlobWithID creates a Blob with a pre-computed ID.
//
// The caller is responsible for id actually matching the contents; stores
// that load blobs from untrusted bytes should verify with [ComputeID] first.
func NewBlobWithID(id ObjectID, contents []byte) *Blob {
	return &Blob{
		id:       id,
		contents: contents,
	}
}

// ID returns the blob's content hash.
func (b *Blob) ID() ObjectID {
	return b.id
}

// Contents returns the blob's bytes. Callers must treat the returned
// slice as read-only.
func (b *Blob) Contents() []byte {
	return b.contents
}

// Size returns the content length in bytes.
func (b *Blob) Size() uint64 {
	return uint64(len(b.contents))
}

// Weight reports the blob's cache accounting weight: its content size.
func (b *Blob) Weight() uint64 {
	return uint64(len(b.contents))
}
