package session

import "errors"

// Sentinel errors for session operations.
// These errors are part of the Store's public API and should be checked using
// errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist or
	// has expired.
	ErrSessionNotFound = errors.New("session not found")

	// errCacheMiss is the internal marker for an absent cache key,
	// distinguishing "not there" from "cache is down".
	errCacheMiss = errors.New("cache miss")
)
