package retry

import (
	"errors"
	"time"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// AfterError carries a server-provided wait hint, e.g. from Retry-After.
type AfterError struct {
	Err   error
	After time.Duration
}

func (e *AfterError) Error() string { return e.Err.Error() }
func (e *AfterError) Unwrap() error { return e.Err }

func retryAfter(err error) (time.Duration, bool) {
	var after *AfterError
	if errors.As(err, &after) && after.After > 0 {
		return after.After, true
	}
	return 0, false
}
