//go:build windows

package logger

import (
	"github.com/phuslu/log"
	"github.com/tekert/golang-etw/etw"
)

// ConfigureETWLibraryLogger points the goetw log manager at the shared
// writers with its own level.
func ConfigureETWLibraryLogger(level string, sharedMultiWriter log.Writer) error {
	lm := etw.GetLogManager()
	ctx := log.NewContext(nil).Str("source", "etw-lib").Value()
	lvl := parseLogLevel(level)
	lm.SetLogLevels(map[etw.LoggerName]log.Level{
		etw.ConsumerLogger: lvl,
		etw.SessionLogger:  lvl,
		etw.DefaultLogger:  lvl,
	})
	lm.SetBaseContext(ctx)
	lm.SetWriter(sharedMultiWriter)
	return nil
}
