package rating

import "errors"

var (
	// ErrInvalidScore is returned for an accuracy outside [0, 100].
	ErrInvalidScore = errors.New("invalid score")
	// ErrInvalidParameter is returned for a non-positive ranking size.
	ErrInvalidParameter = errors.New("invalid parameter")
)
