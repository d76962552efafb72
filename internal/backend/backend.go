// Package backend is the boundary between the session pipeline and the
// operating system's tracing facility. Sessions configure a Backend, receive
// raw records through a Callback and never touch the OS API directly.
package backend

import (
	"errors"

	"github.com/google/uuid"

	"etwtap/internal/event"
)

//go:generate mockgen -source=backend.go -destination=mock_backend.go -package=backend

// ErrUnsupported is returned by every operation on platforms without a live
// tracing facility.
var ErrUnsupported = errors.New("tracing backend not supported on this platform")

// Record is the decoded header of one raw trace record plus its payload.
// Slices are only valid for the duration of the callback.
type Record struct {
	ProviderID        uuid.UUID
	EventID           uint16
	Version           uint8
	Channel           uint8
	Level             uint8
	Opcode            uint8
	Task              uint16
	Keywords          uint64
	ProcessID         uint32
	ThreadID          uint32
	Timestamp         int64 // FILETIME ticks
	ActivityID        uuid.UUID
	RelatedActivityID uuid.UUID
	UserData          []byte
	Stack             []uint64
}

// Schema gives typed access to the properties of the record being
// delivered. It is nil when the backend could not resolve a schema.
type Schema interface {
	ProviderName() string
	PropertyNames() []string
	Property(name string) (event.Value, bool)
}

// Callback is invoked on backend-owned threads, once per raw record. It must
// not block.
type Callback func(rec *Record, schema Schema)

// ProviderSpec is the enable request for one user-mode provider.
type ProviderSpec struct {
	GUID             uuid.UUID
	Name             string
	Level            uint8
	KeywordsAny      uint64
	KeywordsAll      uint64
	EnableProperties uint32
	EventIDs         []uint16
	ProcessIDs       []uint32
}

// TraceConfig describes a user-mode real-time or file-mode session.
type TraceConfig struct {
	Name          string
	LogFile       string // empty for real-time
	BufferSizeKB  uint32
	MinBuffers    uint32
	MaxBuffers    uint32
	FlushInterval uint32 // seconds
	Providers     []ProviderSpec
}

// KernelTraceConfig describes the kernel logger session.
type KernelTraceConfig struct {
	Name          string
	Flags         uint32
	BufferSizeKB  uint32
	MinBuffers    uint32
	MaxBuffers    uint32
	FlushInterval uint32
}

// TraceStats are the backend-side counters of a trace.
type TraceStats struct {
	EventsLost  uint64
	BuffersLost uint64
	BuffersRead uint64
	BufferCount uint32
}

// Trace is a started (or opened) trace.
type Trace interface {
	Name() string
	// Process delivers records to the callback and blocks until the trace
	// is stopped or, for files, exhausted.
	Process() error
	// Stop stops the trace by handle. Process returns afterwards.
	Stop() error
	Stats() TraceStats
}

// Backend starts and stops traces.
type Backend interface {
	StartTrace(cfg TraceConfig, cb Callback) (Trace, error)
	StartKernelTrace(cfg KernelTraceConfig, cb Callback) (Trace, error)
	OpenFile(path string, cb Callback) (Trace, error)
	// StopByName stops a session this process may not own.
	StopByName(name string) error
	// MaxFilterPID is the largest process id the backend can push into a
	// provider filter.
	MaxFilterPID() uint32
}

// KernelLoggerName is the reserved name of the kernel logger session.
const KernelLoggerName = "NT Kernel Logger"

// MapSchema is a Schema backed by a map. Backends and tests use it when the
// properties are already decoded.
type MapSchema struct {
	Provider string
	Names    []string
	Values   map[string]event.Value
}

func (s *MapSchema) ProviderName() string    { return s.Provider }
func (s *MapSchema) PropertyNames() []string { return s.Names }

func (s *MapSchema) Property(name string) (event.Value, bool) {
	v, ok := s.Values[name]
	return v, ok
}
