//go:build !windows

package logger

import "github.com/phuslu/log"

// ConfigureETWLibraryLogger is a no-op where the tracing library is absent.
func ConfigureETWLibraryLogger(level string, sharedMultiWriter log.Writer) error {
	return nil
}
