package resilience

import (
	"errors"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (e.g., a short-lived
// lock on the source file, extractor resource contention).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient filesystem/process
// error patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ETXTBSY) {
		return true
	}

	// String-based heuristics for errors wrapped by exec and the OS layer.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"resource temporarily unavailable",
		"device or resource busy",
		"text file busy",
		"interrupted system call",
		"signal: killed",
		"i/o timeout",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
