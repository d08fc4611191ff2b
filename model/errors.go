package model

import "errors"

// Sentinel errors for object model operations.
var (
	// ErrInvalidID is returned when a value cannot be converted to an ObjectID.
	ErrInvalidID = errors.New("model: invalid object id")

	// ErrInvalidEntry is returned when a tree entry fails validation.
	ErrInvalidEntry = errors.New("model: invalid tree entry")

	// ErrDuplicateEntry is returned when a tree contains two entries with the same name.
	ErrDuplicateEntry = errors.New("model: duplicate tree entry")

	// ErrMalformedTree is returned when serialized tree data cannot be decoded.
	ErrMalformedTree = errors.New("model: malformed tree data")
)
