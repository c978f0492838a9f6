package pod

import "errors"

var (
	// ErrLimitReached means the session used up its action quota. Nothing was
	// written.
	ErrLimitReached = errors.New("session action limit reached")
	ErrNotMember    = errors.New("user is not a member of this pod")
	ErrEmptyText    = errors.New("text must not be empty")
	// ErrAlreadyReflected is returned for a second evening reflection.
	ErrAlreadyReflected = errors.New("check-in already has an evening reflection")
	ErrInvalidStatus    = errors.New("invalid goal status")
)
