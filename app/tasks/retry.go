package tasks

import (
	"errors"
	"time"
)

// retryAfterError asks the scheduler to re-enqueue the task after a delay
// without consuming its retry budget. Used for waiting on eventual
// consistency, where re-checking is expected rather than exceptional.
type retryAfterError struct {
	after  time.Duration
	reason string
}

func (e *retryAfterError) Error() string {
	return "re-check scheduled: " + e.reason
}

func RetryAfter(after time.Duration, reason string) error {
	return &retryAfterError{after: after, reason: reason}
}

// RetryDelay reports whether err is a re-check request and, if so, the
// delay before the task should run again.
func RetryDelay(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.after, true
	}
	return 0, false
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
