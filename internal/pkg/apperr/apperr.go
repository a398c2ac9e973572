package apperr

import "errors"

// Sentinel error kinds shared across modules. Services return these (wrapped
// with %w where extra context helps) and handlers map them onto HTTP codes
// with errors.Is.
var (
	// ErrNotFound: tag/series/post/cursor reference does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCursor: a supplied pagination cursor id does not resolve.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrBadRequest: malformed input, e.g. a reorder list that is not a
	// permutation of the series posts.
	ErrBadRequest = errors.New("bad request")
	// ErrNoPermission: actor is not the resource owner.
	ErrNoPermission = errors.New("no permission")
	// ErrConflict: resource already exists, e.g. post already in a series.
	ErrConflict = errors.New("conflict")
	// ErrDataIntegrity: corrupt state such as an alias tag missing its edge.
	// Surfaced to callers as NotFound but logged distinctly.
	ErrDataIntegrity = errors.New("data integrity violation")
)
