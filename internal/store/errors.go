package store

import "errors"

var (
	// ErrDocumentNotFound is returned when no document has the requested id.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrFamilyNotFound is returned when no family has the requested number.
	ErrFamilyNotFound = errors.New("document family not found")
	// ErrDependencyNotFound is returned when no edge links the two documents.
	ErrDependencyNotFound = errors.New("dependency not found")
	// ErrStaleRevision is returned when a revision-checked write matched no row.
	ErrStaleRevision = errors.New("stale revision")
)
