package client

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"contactdesk/internal/domain/contact"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status      int
	Code        string
	Message     string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.FieldErrors) > 0 {
		keys := make([]string, 0, len(e.FieldErrors))
		for k := range e.FieldErrors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.FieldErrors[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("http %d: %s", e.Status, msg)
}

// Unwrap maps server error codes back onto the contact sentinels so callers
// can use errors.Is the same way against the client and the repository.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "CONTACT_NOT_FOUND":
		return contact.ErrContactNotFound
	case "CONSTRAINT_VIOLATION":
		return contact.ErrConstraint
	case "NOTHING_TO_UPDATE":
		return contact.ErrNothingToUpdate
	case "INVALID_SORT":
		return contact.ErrInvalidSortField
	}
	return nil
}
