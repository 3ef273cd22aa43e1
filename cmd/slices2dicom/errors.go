package main

import "errors"

// errCancelled is returned when the user aborts the interactive form. It is
// not a failure and exits 0.
var errCancelled = errors.New("operation cancelled")

// exitError carries an exit code other than 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps the error returned by the root command onto the process
// exit code: 0 on success or cancellation, 2 when some slices failed, 1
// otherwise.
func exitCode(err error) int {
	if err == nil || errors.Is(err, errCancelled) {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
