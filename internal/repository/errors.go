package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidField indicates a create or update named a field outside the
	// entity's declared schema, or tried to set the identity field.
	ErrInvalidField = errors.New("repository: invalid field")
)
