package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// notFoundError signals a coordinate or id absent from the current catalog,
// typically a stale selection after a refresh.
type notFoundError struct{ what string }

func (e notFoundError) Error() string { return "model not found: " + e.what }

// StatusCode maps the error to 404 for the HTTP layer.
func (e notFoundError) StatusCode() int { return http.StatusNotFound }

// ErrNotFound returns the error for a coordinate missing from the catalog.
func ErrNotFound(co Coordinate) error {
	return notFoundError{what: fmt.Sprintf("%s/%s/%s", co.Family, co.Size, co.Quantization)}
}

// ErrIDNotFound returns the error for an engine id missing from the catalog.
func ErrIDNotFound(id string) error {
	if id == "" {
		id = "(unspecified)"
	}
	return notFoundError{what: id}
}

// IsNotFound reports whether err indicates a missing catalog entry.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}
