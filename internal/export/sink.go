// Package export writes consumed events to files.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"etwtap/internal/etwerr"
	"etwtap/internal/event"
)

// Sink receives events in consumption order. Implementations are not safe
// for concurrent use.
type Sink interface {
	Write(ev *event.Event) error
	// Close flushes buffered events and releases the file.
	Close() error
}

type Format string

const (
	FormatJSONL  Format = "jsonl"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// DefaultBatchSize is the number of rows per SQLite transaction.
const DefaultBatchSize = 1000

// Config selects and parameterizes a sink.
type Config struct {
	Format Format `toml:"format" yaml:"format"`
	Path   string `toml:"path" yaml:"path"`
	// Compress enables zstd framing. JSONL only.
	Compress  bool `toml:"compress" yaml:"compress"`
	BatchSize int  `toml:"batch_size" yaml:"batch_size"`
}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "jsonl", "ndjson", "json":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	}
	return "", etwerr.InvalidConfig("unknown export format %q", s)
}

// resolveFormat falls back to the path extension when Format is empty.
func (c Config) resolveFormat() (Format, error) {
	if c.Format != "" {
		return ParseFormat(string(c.Format))
	}
	return ParseFormat(filepath.Ext(strings.TrimSuffix(c.Path, ".zst")))
}

// Validate checks the format and path.
func (c Config) Validate() error {
	if c.Path == "" {
		return etwerr.InvalidConfig("export path is empty")
	}
	format, err := c.resolveFormat()
	if err != nil {
		return err
	}
	if c.Compress && format != FormatJSONL {
		return etwerr.InvalidConfig("compression is only supported for %s", FormatJSONL)
	}
	if c.BatchSize < 0 {
		return etwerr.InvalidConfig("batch size must not be negative")
	}
	return nil
}

// Open creates the sink described by cfg, truncating an existing file.
func Open(cfg Config) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, _ := cfg.resolveFormat()
	switch format {
	case FormatJSONL:
		return NewJSONL(cfg.Path, cfg.Compress)
	case FormatCSV:
		return NewCSV(cfg.Path)
	case FormatSQLite:
		return NewSQLite(cfg.Path, cfg.BatchSize)
	}
	return nil, fmt.Errorf("export format %q not handled", format)
}
