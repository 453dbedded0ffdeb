package models

import "errors"

// Domain error taxonomy. Services wrap these with context via fmt.Errorf and
// %w; the API layer maps them to HTTP status codes with errors.Is.
var (
	// ErrUnauthenticated means the caller's identity could not be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller is authenticated but not allowed to
	// perform the operation, e.g. deleting another author's comment.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means a referenced post, comment or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means the request payload failed validation, e.g.
	// empty comment content or a non-positive clap delta.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidOperation means the operation is structurally impossible,
	// e.g. following yourself or editing a deleted comment.
	ErrInvalidOperation = errors.New("invalid operation")
)
