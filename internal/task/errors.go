package task

import (
	"errors"

	"github.com/genstudio/api/internal/model"
)

var (
	// ErrAttemptsExhausted is returned when a capped poller never saw a terminal status.
	ErrAttemptsExhausted = errors.New("polling attempts exhausted")

	// ErrResultsUnavailable is returned for a completed status without artifacts.
	ErrResultsUnavailable = &model.TaskError{
		Code:    model.ErrorCodeResultsUnavailable,
		Message: "results unavailable",
	}

	// ErrUpgradeTimeout is returned when the 1080p artifact never became ready.
	ErrUpgradeTimeout = &model.TaskError{
		Code:    model.ErrorCodeTimeout,
		Message: "1080p video is still processing, please try again later",
	}
)

type coded interface {
	ErrorCode() string
}

// CodeOf returns the machine code carried by err, or "".
func CodeOf(err error) string {
	var c coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// HasCode reports whether err carries the given machine code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a check error as fatal: the poller stops instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
