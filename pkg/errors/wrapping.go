package errors

import (
	"fmt"
)

// Wrap adds context to an error while preserving its orchestration kind.
// Taxonomy errors stay detectable through the Is* helpers after wrapping;
// unclassified errors are marked permanent, matching how unknown failures
// are treated by the retry policy.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}

	switch {
	case IsPermanent(err):
		return NewPermanent(msg, err)
	case IsCycle(err) || IsUnknownDependency(err) || IsLaunch(err) ||
		IsHealthCheckTransient(err) || IsHealthCheckTimeout(err) ||
		IsBlocked(err) || IsCancelled(err):
		return fmt.Errorf("%s: %w", msg, err)
	default:
		return NewPermanent(msg, err)
	}
}

// Wrapf wraps an error with a formatted message while preserving its kind.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
