package services

import "github.com/pkg/errors"

// Error kinds surfaced by the taxonomy services. Callers match with
// errors.Is; the HTTP layer maps them onto status codes. Wrapped context is
// added with pkg/errors at the point of failure.
var (
	// ErrNotFound marks a reference to an event, property, or association
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTypeConflict marks reuse of a property name with a data type
	// different from its registered one.
	ErrTypeConflict = errors.New("property data type conflict")

	// ErrDuplicateName marks an explicit registration for a name that
	// already exists, regardless of type.
	ErrDuplicateName = errors.New("property name already exists")

	// ErrDuplicateAssociation marks a second attach of the same
	// (event, property, role) triple.
	ErrDuplicateAssociation = errors.New("property already added to this event")

	// ErrValidation marks malformed input rejected before any store
	// interaction.
	ErrValidation = errors.New("validation failed")
)
