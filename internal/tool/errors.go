package tool

import "errors"

// Sentinel errors for tool operations.
// These are part of the package's public API and should be checked with errors.Is().
var (
	// ErrToolNotFound indicates the requested tool is not in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParameters indicates the call parameters failed schema validation.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrNilHandler indicates a definition was registered without an executable unit.
	ErrNilHandler = errors.New("tool handler is nil")
)
