package apierr

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// IsNotFound returns true if the error is or wraps pgx.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// As extracts an *Error from err, falling back to an internal error so that
// handlers always have something to write.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return InternalError(err)
}
