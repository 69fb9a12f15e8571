package tarchan

import "errors"

var (
	// ErrNotFound is returned when a channel, key, or object is not found
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when credential verification fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyExists is returned when a publish targets a key that is
	// already present in the bucket
	ErrAlreadyExists = errors.New("already exists")
	// ErrUpstream is returned when the object store is unreachable or
	// misbehaves
	ErrUpstream = errors.New("upstream unavailable")
	// ErrMalformed is returned when a catalog or channel config object
	// fails to parse
	ErrMalformed = errors.New("malformed object")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
