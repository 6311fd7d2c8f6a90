package contact

import "errors"

var (
	ErrContactNotFound  = errors.New("contact not found")
	ErrConstraint       = errors.New("contact violates a table constraint")
	ErrNothingToUpdate  = errors.New("no updatable fields in request")
	ErrEmptyBatch       = errors.New("batch must contain at least one contact")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum size")
	ErrInvalidSortField = errors.New("unknown sort field")
)
