package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrRateLimited           = errors.New("rate limited")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrLockHeld              = errors.New("lock already held")
	ErrInvalidCombination    = errors.New("invalid combination")
	ErrInvalidBudget         = errors.New("invalid budget")
	ErrNoCandidates          = errors.New("no candidates")
	ErrEmptyCandidatePool    = errors.New("empty candidate pool")
	ErrEnumerationBudget     = errors.New("sub-combination enumeration exceeds budget")
	ErrInvalidBitstring      = errors.New("invalid bitstring")
	ErrSolverUnavailable     = errors.New("solver unavailable")
	ErrSolverFailed          = errors.New("solver failed")
	ErrDataSourceUnavailable = errors.New("draw data source unavailable")
)
