package rate

import "errors"

var (
	// ErrRateLimited is returned by Check when the window budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidLimit rejects non-positive limits or windows.
	ErrInvalidLimit = errors.New("invalid rate limit")
)
