package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components. Handlers map these onto HTTP
// status codes; callers match with errors.Is.
var (
	// ErrMissingParameter indicates a required client parameter was absent.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrUnreachableSource indicates a webmention source URL could not be
	// fetched (network failure or non-2xx status).
	ErrUnreachableSource = errors.New("source URL could not be fetched")

	// ErrLinkNotFound indicates the fetched source page does not contain
	// the target URL.
	ErrLinkNotFound = errors.New("source page does not link to target")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an invalid credential.
	ErrForbidden = errors.New("forbidden")
)

// QueryError reports a malformed graph-pattern query. It carries the parse
// reason so the caller can surface it to the submitter.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}
