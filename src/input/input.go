package input

import "errors"

// ErrUnavailable means the OS refused or does not support input injection
// (e.g. missing accessibility permission). Fatal to a run, not retried.
var ErrUnavailable = errors.New("input: synthetic input unavailable on this platform")

// Driver issues the platform's standard key chords at whatever application
// currently holds input focus. Implementations must not alter focus.
type Driver interface {
	SendSelectAll() error
	SendCopy() error
	SendPaste() error
}

// NewDriver returns the platform driver, or a stub that fails every call on
// platforms without an injection backend.
func NewDriver() Driver {
	return newPlatformDriver()
}
