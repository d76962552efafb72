//go:build !windows

package logger

import (
	"errors"

	"github.com/phuslu/log"

	"etwtap/internal/config"
)

var errEventlogUnsupported = errors.New("eventlog output unsupported on this platform")

func createEventlogWriter(*config.EventlogConfig) (log.Writer, error) {
	return nil, errEventlogUnsupported
}
