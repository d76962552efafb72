//go:build windows

package backend

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/tekert/golang-etw/etw"

	"etwtap/internal/event"
	"etwtap/internal/logger"
)

// consumerStopTimeout bounds how long Stop waits for the consumer goroutines.
const consumerStopTimeout = 10 * time.Second

// commonProperties are the property names decoded into every event. Numeric
// ones are tried as unsigned integers first.
var commonProperties = []struct {
	name    string
	numeric bool
}{
	{"ProcessId", true},
	{"ProcessID", true},
	{"ThreadId", true},
	{"ParentProcessId", true},
	{"SessionId", true},
	{"Status", true},
	{"Result", true},
	{"ErrorCode", true},
	{"ImageFileName", false},
	{"ImageName", false},
	{"ProcessName", false},
	{"CommandLine", false},
	{"FileName", false},
	{"FilePath", false},
	{"KeyName", false},
	{"ValueName", false},
	{"QueryName", false},
	{"QueryResults", false},
	{"Message", false},
	{"Data", false},
	{"ScriptBlockText", false},
}

// GoETW drives ETW through github.com/tekert/goetw.
type GoETW struct {
	log log.Logger
}

// New returns the platform backend.
func New() Backend {
	return &GoETW{log: logger.NewLoggerWithContext("backend")}
}

func (b *GoETW) MaxFilterPID() uint32 { return math.MaxUint32 }

func (b *GoETW) StopByName(name string) error {
	return etw.StopSession(name)
}

func (b *GoETW) StartTrace(cfg TraceConfig, cb Callback) (Trace, error) {
	if cfg.LogFile != "" {
		return nil, fmt.Errorf("%w: file-mode sessions", ErrUnsupported)
	}

	s := etw.NewRealTimeSession(cfg.Name)
	applyBufferProps(s, cfg.BufferSizeKB, cfg.MinBuffers, cfg.MaxBuffers, cfg.FlushInterval)

	names := make(map[uuid.UUID]string, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		p := etw.Provider{
			Name:             spec.Name,
			GUID:             toETWGUID(spec.GUID),
			EnableLevel:      spec.Level,
			MatchAnyKeyword:  spec.KeywordsAny,
			MatchAllKeyword:  spec.KeywordsAll,
			EnableProperties: spec.EnableProperties,
		}
		if len(spec.EventIDs) > 0 {
			p.Filters = append(p.Filters, etw.NewEventIDFilter(true, spec.EventIDs...))
		}
		if len(spec.ProcessIDs) > 0 {
			p.Filters = append(p.Filters, etw.NewPIDFilter(spec.ProcessIDs...))
		}
		// EnableProvider starts the session on first use.
		if err := s.EnableProvider(p); err != nil {
			_ = s.Stop()
			return nil, fmt.Errorf("failed to enable provider %s: %w", spec.GUID, err)
		}
		b.log.Debug().Str("session", cfg.Name).Str("provider", spec.GUID.String()).Msg("Enabled provider")
		names[spec.GUID] = spec.Name
	}

	return b.newTrace(cfg.Name, s, names, cb), nil
}

func (b *GoETW) StartKernelTrace(cfg KernelTraceConfig, cb Callback) (Trace, error) {
	s := etw.NewKernelRealTimeSession(etw.KernelNtFlag(cfg.Flags))
	applyBufferProps(s, cfg.BufferSizeKB, cfg.MinBuffers, cfg.MaxBuffers, cfg.FlushInterval)
	// Kernel sessions must be started explicitly.
	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("failed to start kernel session: %w", err)
	}
	return b.newTrace(KernelLoggerName, s, nil, cb), nil
}

func (b *GoETW) OpenFile(path string, cb Callback) (Trace, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &goetwTrace{
		name:   path,
		cancel: cancel,
		log:    b.log,
	}
	t.consumer = etw.NewConsumer(ctx).FromTraceNames(path)
	t.wire(nil, cb)
	return t, nil
}

func (b *GoETW) newTrace(name string, s *etw.RealTimeSession, names map[uuid.UUID]string, cb Callback) *goetwTrace {
	ctx, cancel := context.WithCancel(context.Background())
	t := &goetwTrace{
		name:    name,
		session: s,
		cancel:  cancel,
		log:     b.log,
	}
	t.consumer = etw.NewConsumer(ctx).FromSessions(s)
	t.wire(names, cb)
	return t
}

func applyBufferProps(s *etw.RealTimeSession, sizeKB, minBuf, maxBuf, flush uint32) {
	props := s.TraceProperties()
	props.BufferSize = sizeKB
	props.MinimumBuffers = minBuf
	props.MaximumBuffers = maxBuf
	props.FlushTimer = flush
}

type goetwTrace struct {
	name     string
	session  *etw.RealTimeSession // nil for files
	consumer *etw.Consumer
	cancel   context.CancelFunc
	log      log.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

func (t *goetwTrace) Name() string { return t.name }

// wire installs the prepared-event callback. Properties are decoded while the
// helper is still valid, so the schema must not escape the callback. Events
// without a resolved schema are delivered with a nil one and raw user data.
func (t *goetwTrace) wire(names map[uuid.UUID]string, cb Callback) {
	t.consumer.EventPreparedCallback = func(h *etw.EventRecordHelper) error {
		defer h.Skip()
		rec := recordFromHelper(h)
		if h.TraceInfo == nil || h.TraceInfo.TopLevelPropertyCount == 0 {
			cb(&rec, nil)
			return nil
		}
		cb(&rec, &helperSchema{h: h, provider: names[rec.ProviderID]})
		return nil
	}
}

func (t *goetwTrace) Process() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	if err := t.consumer.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	t.started = true
	t.mu.Unlock()

	t.consumer.Wait()
	return nil
}

func (t *goetwTrace) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true

	var errs []error
	if t.session != nil {
		if err := t.session.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop session: %w", err))
		}
	}
	if t.started {
		if err := t.consumer.StopWithTimeout(consumerStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop consumer: %w", err))
		}
	}
	t.cancel()
	return errors.Join(errs...)
}

func (t *goetwTrace) Stats() TraceStats {
	var st TraceStats
	for _, tr := range t.consumer.GetTraces() {
		st.EventsLost += uint64(tr.RTLostEvents.Load())
		st.BuffersLost += uint64(tr.RTLostBuffer.Load())
	}
	st.EventsLost += uint64(t.consumer.LostEvents.Load())

	if t.session != nil && t.session.IsStarted() {
		prop, err := t.session.QueryTrace()
		if err != nil {
			t.log.Debug().Err(err).Str("session", t.name).Msg("Failed to query trace for stats")
			return st
		}
		st.BufferCount = prop.NumberOfBuffers
		st.BuffersRead = uint64(prop.BuffersWritten)
	}
	return st
}

func recordFromHelper(h *etw.EventRecordHelper) Record {
	er := h.EventRec
	hdr := &er.EventHeader
	rec := Record{
		ProviderID: fromETWGUID(&hdr.ProviderId),
		EventID:    hdr.EventDescriptor.Id,
		Version:    hdr.EventDescriptor.Version,
		Channel:    hdr.EventDescriptor.Channel,
		Level:      hdr.EventDescriptor.Level,
		Opcode:     hdr.EventDescriptor.Opcode,
		Task:       hdr.EventDescriptor.Task,
		Keywords:   hdr.EventDescriptor.Keyword,
		ProcessID:  hdr.ProcessId,
		ThreadID:   hdr.ThreadId,
		Timestamp:  hdr.TimeStamp,
		ActivityID: fromETWGUID(&hdr.ActivityId),
	}
	// MOF events carry their id in the opcode.
	if er.IsMof() {
		rec.EventID = uint16(hdr.EventDescriptor.Opcode)
	}
	if er.UserDataLength > 0 && er.UserData != 0 {
		rec.UserData = unsafe.Slice((*byte)(unsafe.Pointer(er.UserData)), er.UserDataLength)
	}
	applyExtended(&rec, extendedItems(er))
	return rec
}

// extendedDataItem mirrors EVENT_HEADER_EXTENDED_DATA_ITEM.
type extendedDataItem struct {
	reserved1 uint16
	extType   uint16
	flags     uint16 // Linkage:1, Reserved2:15
	dataSize  uint16
	dataPtr   uint64
}

// extendedItems views the record's extended data without copying.
func extendedItems(er *etw.EventRecord) []extItem {
	n := int(er.ExtendedDataCount)
	base := unsafe.Pointer(er.ExtendedData)
	if n == 0 || base == nil {
		return nil
	}
	raw := unsafe.Slice((*extendedDataItem)(base), n)
	items := make([]extItem, 0, n)
	for _, it := range raw {
		if it.dataPtr == 0 || it.dataSize == 0 {
			continue
		}
		items = append(items, extItem{
			typ:  it.extType,
			data: unsafe.Slice((*byte)(unsafe.Pointer(uintptr(it.dataPtr))), it.dataSize),
		})
	}
	return items
}

type helperSchema struct {
	h        *etw.EventRecordHelper
	provider string
	names    []string
}

func (s *helperSchema) ProviderName() string { return s.provider }

func (s *helperSchema) PropertyNames() []string {
	if s.names != nil {
		return s.names
	}
	s.names = make([]string, 0, 4)
	for _, p := range commonProperties {
		if _, ok := s.Property(p.name); ok {
			s.names = append(s.names, p.name)
		}
	}
	return s.names
}

func (s *helperSchema) Property(name string) (event.Value, bool) {
	numeric := false
	for _, p := range commonProperties {
		if p.name == name {
			numeric = p.numeric
			break
		}
	}
	if numeric {
		if u, err := s.h.GetPropertyUint(name); err == nil {
			return event.Uint64(u), true
		}
	}
	str, err := s.h.GetPropertyString(name)
	if err != nil {
		return event.Value{}, false
	}
	if numeric {
		if u, perr := strconv.ParseUint(str, 0, 64); perr == nil {
			return event.Uint64(u), true
		}
	}
	return event.String(str), true
}

func fromETWGUID(g *etw.GUID) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:], g.Data4[:])
	return u
}

func toETWGUID(u uuid.UUID) etw.GUID {
	g := etw.GUID{
		Data1: binary.BigEndian.Uint32(u[0:4]),
		Data2: binary.BigEndian.Uint16(u[4:6]),
		Data3: binary.BigEndian.Uint16(u[6:8]),
	}
	copy(g.Data4[:], u[8:])
	return g
}
