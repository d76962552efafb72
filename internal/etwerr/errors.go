// Package etwerr holds the error kinds surfaced by sessions, readers and
// configuration. Callers match them with errors.Is.
package etwerr

import (
	"errors"
	"fmt"
)

var (
	// Lifecycle violations.
	ErrAlreadyRunning = errors.New("session is already running")
	ErrNotRunning     = errors.New("session is not running")

	// Backend operation failures.
	ErrStartTraceFailed = errors.New("failed to start ETW trace")
	ErrStopTraceFailed  = errors.New("failed to stop ETW trace")

	// Configuration errors, rejected before any backend call.
	ErrInvalidProviderGUID = errors.New("invalid provider GUID")
	ErrInvalidConfig       = errors.New("invalid configuration")

	ErrFileNotFound = errors.New("file not found")
	ErrChannel      = errors.New("channel error")
)

// StartTraceFailed wraps a backend start error.
func StartTraceFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrStartTraceFailed, err)
}

// StopTraceFailed wraps a backend stop error.
func StopTraceFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrStopTraceFailed, err)
}

// InvalidProviderGUID reports a GUID string that could not be parsed.
func InvalidProviderGUID(guid string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProviderGUID, guid)
}

// InvalidConfig formats a configuration error.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// FileNotFound reports a missing trace file.
func FileNotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrFileNotFound, path)
}

// Channel reports a disconnected event channel.
func Channel(detail string) error {
	return fmt.Errorf("%w: %s", ErrChannel, detail)
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrAlreadyRunning, "AlreadyRunning"},
	{ErrNotRunning, "NotRunning"},
	{ErrStartTraceFailed, "StartTraceFailed"},
	{ErrStopTraceFailed, "StopTraceFailed"},
	{ErrInvalidProviderGUID, "InvalidProviderGuid"},
	{ErrInvalidConfig, "InvalidConfig"},
	{ErrFileNotFound, "FileNotFound"},
	{ErrChannel, "ChannelError"},
}

// Kind returns the short name of the first known error kind in err's chain,
// or "" when err is nil or unknown.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}
