package model

import (
	"fmt"
	"io/fs"
	"iter"
	"slices"
	"strings"
)

// EntryType classifies a tree entry.
//
// The numeric values are part of the serialized tree format and must not
// be reordered.
type EntryType uint8

const (
	// EntryTypeTree is a subdirectory entry.
	EntryTypeTree EntryType = iota

	// EntryTypeRegularFile is a non-executable file entry.
	EntryTypeRegularFile

	// EntryTypeExecutableFile is an executable file entry.
	EntryTypeExecutableFile

	// EntryTypeSymlink is a symbolic link entry.
	EntryTypeSymlink
)

// String returns a short name for the entry type.
func (t EntryType) String() string {
	switch t {
	case EntryTypeTree:
		return "tree"
	case EntryTypeRegularFile:
		return "file"
	case EntryTypeExecutableFile:
		return "executable"
	case EntryTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

func (t EntryType) valid() bool {
	return t <= EntryTypeSymlink
}

// FileMode returns the initial file mode, including permission bits, for
// an entry of this type.
func (t EntryType) FileMode() fs.FileMode {
	switch t {
	case EntryTypeTree:
		return fs.ModeDir | 0o755
	case EntryTypeRegularFile:
		return 0o644
	case EntryTypeExecutableFile:
		return 0o755
	case EntryTypeSymlink:
		return fs.ModeSymlink | 0o755
	default:
		return 0
	}
}

// EntryTypeFromFileMode converts a file mode to the matching EntryType.
// It returns false for file types a tree cannot track (sockets, devices,
// FIFOs).
func EntryTypeFromFileMode(mode fs.FileMode) (EntryType, bool) {
	switch {
	case mode.IsDir():
		return EntryTypeTree, true
	case mode&fs.ModeSymlink != 0:
		return EntryTypeSymlink, true
	case mode.IsRegular():
		if mode&0o100 != 0 {
			return EntryTypeExecutableFile, true
		}
		return EntryTypeRegularFile, true
	default:
		return 0, false
	}
}

// SHA1Hash holds a raw SHA-1 content hash recorded by some backends
// alongside tree entries.
type SHA1Hash [20]byte

// TreeEntry describes a single child of a Tree.
type TreeEntry struct {
	// Name is the entry's name within its parent tree. Names contain no
	// path separators.
	Name string

	// ID is the content hash of the object the entry points at: a subtree
	// for EntryTypeTree, file contents otherwise.
	ID ObjectID

	// Type classifies the entry.
	Type EntryType

	// Size is the file content size in bytes, when recorded. Nil when the
	// backend did not supply one; backends record sizes for files only.
	Size *uint64

	// ContentSHA1 is the SHA-1 of the file contents, when recorded.
	// Nil when the backend did not supply one.
	ContentSHA1 *SHA1Hash
}

func validateEntry(e TreeEntry) error {
	if e.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidEntry)
	}
	if e.Name == "." || e.Name == ".." {
		return fmt.Errorf("%w: reserved name %q", ErrInvalidEntry, e.Name)
	}
	if strings.ContainsAny(e.Name, "/\x00") {
		return fmt.Errorf("%w: name %q contains a separator", ErrInvalidEntry, e.Name)
	}
	if !e.Type.valid() {
		return fmt.Errorf("%w: unknown type %d for %q", ErrInvalidEntry, e.Type, e.Name)
	}
	return nil
}

// Tree is an immutable directory object: a list of named entries sorted
// by name.
//
// A Tree's ObjectID is the hash of its canonical serialized form (see
// [Tree.MarshalBinary]), so equal trees always share an ID.
type Tree struct {
	id      ObjectID
	entries []TreeEntry
	weight  uint64
}

// Rough per-object memory footprint used for cache accounting. Entry names
// are counted exactly; the rest is a fixed estimate per struct.
const (
	treeBaseWeight  = 64
	entryBaseWeight = 80
)

// NewTree creates a Tree from entries.
//
// Entries are copied and sorted by name; the input slice is not retained.
// NewTree fails if any entry is invalid or if two entries share a name.
func NewTree(entries []TreeEntry) (*Tree, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b TreeEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i, e := range sorted {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, e.Name)
		}
	}

	t := &Tree{entries: sorted}
	t.weight = computeTreeWeight(sorted)
	data, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	t.id = ComputeID(data)
	return t, nil
}

func computeTreeWeight(entries []TreeEntry) uint64 {
	w := uint64(treeBaseWeight)
	for _, e := range entries {
		w += entryBaseWeight + uint64(len(e.Name))
	}
	return w
}

// ID returns the tree's content hash.
func (t *Tree) ID() ObjectID {
	return t.id
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Find returns the entry with the given name.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	i, ok := slices.BinarySearchFunc(t.entries, name, func(e TreeEntry, n string) int {
		return strings.Compare(e.Name, n)
	})
	if !ok {
		return TreeEntry{}, false
	}
	return t.entries[i], true
}

// Entries iterates over the tree's entries in name order.
func (t *Tree) Entries() iter.Seq[TreeEntry] {
	return func(yield func(TreeEntry) bool) {
		for _, e := range t.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Weight reports the tree's cache accounting weight: an estimate of its
// resident memory footprint.
func (t *Tree) Weight() uint64 {
	return t.weight
}
