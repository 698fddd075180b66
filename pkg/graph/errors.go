package graph

import "errors"

// Common errors returned by graph operations.
//
// ErrNoPath is intentionally absent from this list: a missing route between
// two connected components is a valid query outcome, not a graph failure,
// and lives in the pathfind package.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("person already exists")
	ErrNotFound     = errors.New("not found")
	ErrSelfLoop     = errors.New("self-loops are not allowed")
	ErrInvalidDelta = errors.New("invalid weight delta")
)
