package librarian

import "errors"

var (
	// ErrNotFound is returned by Get and Remove for links whose archive
	// was never added (or was already removed).
	ErrNotFound = errors.New("librarian: archive not found")

	// ErrInvalidLink is returned when a link carries no archive key and
	// cannot be resolved to one.
	ErrInvalidLink = errors.New("librarian: link does not resolve to an archive key")

	ErrNoDirectory = errors.New("librarian: no library directory")
	ErrNoBackend   = errors.New("librarian: no backend configured")
)
