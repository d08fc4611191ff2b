package oci

import "errors"

var (
	// ErrInvalidReference is returned when a repository reference cannot be parsed.
	ErrInvalidReference = errors.New("oci: invalid reference")

	// ErrUnauthorized is returned when registry authentication fails.
	ErrUnauthorized = errors.New("oci: unauthorized")

	// ErrForbidden is returned when the registry denies access.
	ErrForbidden = errors.New("oci: forbidden")
)
