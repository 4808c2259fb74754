package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrMissingField is a BadRequest for empty required fields.
	ErrMissingField = fmt.Errorf("%w: missing required field", ErrBadRequest)
	ErrTooManyTags  = fmt.Errorf("%w: too many tags", ErrBadRequest)
)
