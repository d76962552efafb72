// Package logger configures phuslu/log from the application configuration
// and hands out component loggers.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"

	"etwtap/internal/config"
)

const asyncChannelSize = 4096

var levels = map[string]log.Level{
	"trace":   log.TraceLevel,
	"debug":   log.DebugLevel,
	"info":    log.InfoLevel,
	"warn":    log.WarnLevel,
	"warning": log.WarnLevel,
	"error":   log.ErrorLevel,
	"fatal":   log.FatalLevel,
}

// parseLogLevel falls back to info for unknown names.
func parseLogLevel(s string) log.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return log.InfoLevel
}

func timeLocation(name string) *time.Location {
	switch name {
	case "", "Local":
		return time.Local
	case "UTC":
		return time.UTC
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.Local
}

func timeFormat(format string) string {
	switch format {
	case "Unix":
		return log.TimeFormatUnix
	case "UnixMs":
		return log.TimeFormatUnixMs
	}
	return format
}

// glogFormat renders "Lyyyy-mm-ddThh:mm:ss goid caller] message".
func glogFormat(w io.Writer, a *log.FormatterArgs) (int, error) {
	var b bytes.Buffer
	lead := byte('?')
	if a.Level != "" {
		lead = a.Level[0] &^ 0x20
	}
	b.WriteByte(lead)
	b.WriteString(a.Time)
	b.WriteByte(' ')
	b.WriteString(a.Goid)
	b.WriteByte(' ')
	b.WriteString(a.Caller)
	b.WriteString("] ")
	b.WriteString(a.Message)
	for _, kv := range a.KeyValues {
		b.WriteByte(' ')
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(kv.Value)
	}
	b.WriteByte('\n')
	return w.Write(b.Bytes())
}

// isTerminal is replaced in tests.
var isTerminal = func(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func async(w log.Writer, enabled bool) log.Writer {
	if !enabled {
		return w
	}
	return &log.AsyncWriter{ChannelSize: asyncChannelSize, Writer: w}
}

func createConsoleWriter(cc *config.ConsoleConfig) (log.Writer, error) {
	out := os.Stderr
	if cc.Writer == "stdout" {
		out = os.Stdout
	}
	if cc.FastIO {
		return async(&log.IOWriter{Writer: out}, cc.Async), nil
	}

	cw := &log.ConsoleWriter{
		ColorOutput:    cc.ColorOutput,
		QuoteString:    cc.QuoteString,
		EndWithMessage: true,
		Writer:         out,
	}
	switch cc.Format {
	case "", "auto":
		// Colour only on a terminal so piped event output stays clean.
		cw.ColorOutput = cw.ColorOutput && isTerminal(out)
	case "logfmt":
		cw.Formatter = log.LogfmtFormatter{TimeField: "time"}.Formatter
	case "glog":
		cw.Formatter = glogFormat
	default:
		return nil, fmt.Errorf("unknown console format %q", cc.Format)
	}
	return async(cw, cc.Async), nil
}

func createFileWriter(fc *config.FileConfig) (log.Writer, error) {
	if fc.Filename == "" {
		return nil, fmt.Errorf("file output needs a filename")
	}
	if fc.EnsureFolder {
		if err := os.MkdirAll(filepath.Dir(fc.Filename), 0o755); err != nil {
			return nil, err
		}
	}
	return async(&log.FileWriter{
		Filename:     fc.Filename,
		FileMode:     0o644,
		MaxSize:      fc.MaxSize << 20,
		MaxBackups:   fc.MaxBackups,
		TimeFormat:   timeFormat(fc.TimeFormat),
		LocalTime:    fc.LocalTime,
		HostName:     fc.HostName,
		ProcessID:    fc.ProcessID,
		EnsureFolder: fc.EnsureFolder,
	}, fc.Async), nil
}

// createWriter builds the writer for one enabled output.
func createWriter(o config.LogOutput) (log.Writer, error) {
	switch o.Type {
	case "console":
		if o.Console != nil {
			return createConsoleWriter(o.Console)
		}
	case "file":
		if o.File != nil {
			return createFileWriter(o.File)
		}
	case "syslog":
		if s := o.Syslog; s != nil {
			return async(&log.SyslogWriter{
				Network:  s.Network,
				Address:  s.Address,
				Hostname: s.Hostname,
				Tag:      s.Tag,
				Marker:   s.Marker,
			}, s.Async), nil
		}
	case "eventlog":
		if o.Eventlog != nil {
			return createEventlogWriter(o.Eventlog)
		}
	default:
		return nil, fmt.Errorf("unknown log output type %q", o.Type)
	}
	return nil, fmt.Errorf("%s output has no %s section", o.Type, o.Type)
}

// createMultiWriter fans out to every enabled output. With none enabled it
// writes plain lines to stderr.
func createMultiWriter(outputs []config.LogOutput) (log.Writer, error) {
	var writers log.MultiEntryWriter
	for _, o := range outputs {
		if !o.Enabled {
			continue
		}
		w, err := createWriter(o)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	switch len(writers) {
	case 0:
		return &log.IOWriter{Writer: os.Stderr}, nil
	case 1:
		return writers[0], nil
	}
	return &writers, nil
}

// ConfigureLogging replaces log.DefaultLogger and routes the tracing
// library's own logs through the same writers.
func ConfigureLogging(cfg config.LoggingConfig) error {
	w, err := createMultiWriter(cfg.Outputs)
	if err != nil {
		return err
	}

	log.DefaultLogger = log.Logger{
		Level:        parseLogLevel(cfg.Defaults.Level),
		Caller:       cfg.Defaults.Caller,
		TimeField:    cfg.Defaults.TimeField,
		TimeFormat:   timeFormat(cfg.Defaults.TimeFormat),
		TimeLocation: timeLocation(cfg.Defaults.TimeLocation),
		Writer:       w,
	}

	if err := ConfigureETWLibraryLogger(cfg.LibLevel, w); err != nil {
		return fmt.Errorf("failed to configure tracing library logging: %w", err)
	}

	log.Debug().
		Str("level", cfg.Defaults.Level).
		Str("lib_level", cfg.LibLevel).
		Int("outputs", len(cfg.Outputs)).
		Msg("Loggers configured")
	return nil
}

// NewLoggerWithContext copies log.DefaultLogger and tags it with component.
// Call it after ConfigureLogging; loggers made earlier keep the old writer.
func NewLoggerWithContext(component string) log.Logger {
	l := log.DefaultLogger
	l.Caller = 0
	l.Context = log.NewContext(l.Context).Str("component", component).Value()
	return l
}
