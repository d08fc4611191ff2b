package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Tree wire format, version 1. All integers are little-endian.
//
//	u8   format version
//	u32  entry count
//	per entry, in strictly increasing name order:
//	  u16  name length, then name bytes
//	  32B  object id
//	  u8   entry type
//	  u8   flags: bit 0 = size present, bit 1 = content sha1 present
//	  u64  size          (only if flag bit 0 is set)
//	  20B  content sha1  (only if flag bit 1 is set)
//
// The encoding is canonical: a given set of entries has exactly one valid
// serialization, so hashing the serialized bytes yields a stable tree ID.
const treeFormatVersion = 1

const (
	entryFlagSize = 1 << 0
	entryFlagSHA1 = 1 << 1

	sha1Length = 20
)

// MarshalBinary returns the tree's canonical serialized form.
// The tree's ID is the [ComputeID] hash of these bytes.
func (t *Tree) MarshalBinary() ([]byte, error) {
	if uint64(len(t.entries)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: too many entries", ErrInvalidEntry)
	}

	size := 1 + 4
	for _, e := range t.entries {
		if len(e.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: name %q too long", ErrInvalidEntry, e.Name[:32]+"...")
		}
		size += 2 + len(e.Name) + IDLength + 1 + 1
		if e.Size != nil {
			size += 8
		}
		if e.ContentSHA1 != nil {
			size += sha1Length
		}
	}

	buf := make([]byte, 0, size)
	buf = append(buf, treeFormatVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.entries)))
	for _, e := range t.entries {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Name)))
		buf = append(buf, e.Name...)
		buf = append(buf, e.ID[:]...)
		buf = append(buf, byte(e.Type))

		var flags byte
		if e.Size != nil {
			flags |= entryFlagSize
		}
		if e.ContentSHA1 != nil {
			flags |= entryFlagSHA1
		}
		buf = append(buf, flags)

		if e.Size != nil {
			buf = binary.LittleEndian.AppendUint64(buf, *e.Size)
		}
		if e.ContentSHA1 != nil {
			buf = append(buf, e.ContentSHA1[:]...)
		}
	}
	return buf, nil
}

// UnmarshalTree decodes a tree from its serialized form.
//
// The input must be canonical (correct version, entries strictly ordered
// by name, no trailing bytes); anything else fails with ErrMalformedTree.
// The returned tree's ID is the hash of data.
func UnmarshalTree(data []byte) (*Tree, error) {
	r := byteReader{rest: data}

	header, ok := r.take(1 + 4)
	if !ok {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedTree)
	}
	if header[0] != treeFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedTree, header[0])
	}
	count := binary.LittleEndian.Uint32(header[1:])

	// count is unvalidated input; cap the preallocation.
	entries := make([]TreeEntry, 0, min(int(count), 4096))
	for i := range count {
		e, err := r.entry()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedTree, i, err)
		}
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedTree, i, err)
		}
		if i > 0 && strings.Compare(entries[i-1].Name, e.Name) >= 0 {
			return nil, fmt.Errorf("%w: entry %q out of order", ErrMalformedTree, e.Name)
		}
		entries = append(entries, e)
	}
	if len(r.rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTree, len(r.rest))
	}

	return &Tree{
		id:      ComputeID(data),
		entries: entries,
		weight:  computeTreeWeight(entries),
	}, nil
}

type byteReader struct {
	rest []byte
}

func (r *byteReader) take(n int) ([]byte, bool) {
	if len(r.rest) < n {
		return nil, false
	}
	b := r.rest[:n]
	r.rest = r.rest[n:]
	return b, true
}

func (r *byteReader) entry() (TreeEntry, error) {
	lenBytes, ok := r.take(2)
	if !ok {
		return TreeEntry{}, errors.New("truncated name length")
	}
	nameBytes, ok := r.take(int(binary.LittleEndian.Uint16(lenBytes)))
	if !ok {
		return TreeEntry{}, errors.New("truncated name")
	}

	fixed, ok := r.take(IDLength + 1 + 1)
	if !ok {
		return TreeEntry{}, errors.New("truncated entry body")
	}
	e := TreeEntry{
		Name: string(nameBytes),
		Type: EntryType(fixed[IDLength]),
	}
	copy(e.ID[:], fixed[:IDLength])

	flags := fixed[IDLength+1]
	if flags&^(entryFlagSize|entryFlagSHA1) != 0 {
		return TreeEntry{}, fmt.Errorf("unknown flags 0x%02x", flags)
	}
	if flags&entryFlagSize != 0 {
		sizeBytes, ok := r.take(8)
		if !ok {
			return TreeEntry{}, errors.New("truncated size")
		}
		size := binary.LittleEndian.Uint64(sizeBytes)
		e.Size = &size
	}
	if flags&entryFlagSHA1 != 0 {
		shaBytes, ok := r.take(sha1Length)
		if !ok {
			return TreeEntry{}, errors.New("truncated content sha1")
		}
		var sha SHA1Hash
		copy(sha[:], shaBytes)
		e.ContentSHA1 = &sha
	}
	return e, nil
}
