package completion

import "errors"

var (
	ErrNotConfigured = errors.New("completion provider is not configured")
	ErrEmptyQuery    = errors.New("query is empty")
	ErrUnavailable   = errors.New("completion provider unavailable")
	ErrEmptyAnswer   = errors.New("completion provider returned no answer")
)
