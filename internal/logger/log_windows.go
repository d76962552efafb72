package logger

import (
	"github.com/phuslu/log"

	"etwtap/internal/config"
)

func createEventlogWriter(ec *config.EventlogConfig) (log.Writer, error) {
	return async(&log.EventlogWriter{
		Source: ec.Source,
		ID:     uintptr(ec.ID),
		Host:   ec.Host,
	}, ec.Async), nil
}
