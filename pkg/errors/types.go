package errors

import (
	"errors"
)

// As is a re-export of errors.As for convenient access in error handling code.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a re-export of errors.Is for convenient access in error handling code.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join is a re-export of errors.Join for convenient access in error handling code.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsCycle checks if an error is or wraps a CycleError.
func IsCycle(err error) bool {
	var cerr *CycleError
	return errors.As(err, &cerr)
}

// IsUnknownDependency checks if an error is or wraps an UnknownDependencyError.
func IsUnknownDependency(err error) bool {
	var uerr *UnknownDependencyError
	return errors.As(err, &uerr)
}

// IsLaunch checks if an error is or wraps a LaunchError.
func IsLaunch(err error) bool {
	var lerr *LaunchError
	return errors.As(err, &lerr)
}

// IsHealthCheckTransient checks if an error is or wraps a HealthCheckTransientError.
func IsHealthCheckTransient(err error) bool {
	var herr *HealthCheckTransientError
	return errors.As(err, &herr)
}

// IsHealthCheckTimeout checks if an error is or wraps a HealthCheckTimeoutError.
func IsHealthCheckTimeout(err error) bool {
	var herr *HealthCheckTimeoutError
	return errors.As(err, &herr)
}

// IsBlocked checks if an error is or wraps a BlockedError.
func IsBlocked(err error) bool {
	var berr *BlockedError
	return errors.As(err, &berr)
}

// IsCancelled checks if an error is or wraps a CancelledError.
func IsCancelled(err error) bool {
	var cerr *CancelledError
	return errors.As(err, &cerr)
}

// IsPermanent checks if an error is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// IsRetryable reports whether a failed health probe attempt should be retried.
// Everything is retryable except errors carrying the permanent marker; this
// matches compose semantics where any probe failure counts against the retry
// budget rather than aborting.
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}
