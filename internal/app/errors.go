package app

import (
	"errors"
	"fmt"
)

// ErrQuit is returned by Run when the user asks to leave. Callers translate
// it to a clean exit.
var ErrQuit = errors.New("quit requested")

// ErrAlreadyRunning is returned by Run when the frame loop is already live.
var ErrAlreadyRunning = errors.New("application already running")

// InitError reports a component that failed during construction or startup.
type InitError struct {
	Component string
	Err       error
}

// Error returns the error message.
func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error { return e.Err }
