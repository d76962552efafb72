// Package backendtest provides an in-memory backend for lifecycle tests.
package backendtest

import (
	"fmt"
	"math"
	"sync"

	"etwtap/internal/backend"
)

// Emit is one scripted record.
type Emit struct {
	Record backend.Record
	Schema backend.Schema
}

// Fake is a scriptable backend. Live traces emit Script and then block until
// stopped; file traces emit Files[path] and return.
type Fake struct {
	// MaxPID is returned by MaxFilterPID. Zero means math.MaxUint32.
	MaxPID uint32
	// StartErr fails StartTrace and StartKernelTrace when set.
	StartErr error
	// StopErr is returned by every trace's Stop.
	StopErr error
	// StopHangs makes a failing Stop leave Process blocked until Release.
	StopHangs bool
	// Script is emitted by every live trace before it blocks.
	Script []Emit
	// Files maps a replay path to its records.
	Files map[string][]Emit
	// TraceStats seeds what every new trace's Stats returns.
	TraceStats backend.TraceStats

	mu           sync.Mutex
	traces       []*Trace
	configs      []backend.TraceConfig
	kernel       []backend.KernelTraceConfig
	stoppedNames []string
	openCalls    int
}

var _ backend.Backend = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{Files: map[string][]Emit{}}
}

func (f *Fake) StartTrace(cfg backend.TraceConfig, cb backend.Callback) (backend.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	f.configs = append(f.configs, cfg)
	return f.add(cfg.Name, cb, f.Script, false), nil
}

func (f *Fake) StartKernelTrace(cfg backend.KernelTraceConfig, cb backend.Callback) (backend.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	f.kernel = append(f.kernel, cfg)
	return f.add(backend.KernelLoggerName, cb, f.Script, false), nil
}

func (f *Fake) OpenFile(path string, cb backend.Callback) (backend.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	script, ok := f.Files[path]
	if !ok {
		return nil, fmt.Errorf("no scripted file %q", path)
	}
	return f.add(path, cb, script, true), nil
}

func (f *Fake) StopByName(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedNames = append(f.stoppedNames, name)
	return nil
}

func (f *Fake) MaxFilterPID() uint32 {
	if f.MaxPID == 0 {
		return math.MaxUint32
	}
	return f.MaxPID
}

func (f *Fake) add(name string, cb backend.Callback, script []Emit, file bool) *Trace {
	t := &Trace{
		name:    name,
		cb:      cb,
		script:  append([]Emit(nil), script...),
		file:    file,
		stopErr: f.StopErr,
		hang:    f.StopHangs && f.StopErr != nil,
		stopCh:  make(chan struct{}),
		stats:   f.TraceStats,
	}
	f.traces = append(f.traces, t)
	return t
}

// OpenCalls counts OpenFile calls, failed ones included.
func (f *Fake) OpenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openCalls
}

// Traces returns every trace created so far.
func (f *Fake) Traces() []*Trace {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Trace(nil), f.traces...)
}

// LastTrace returns the most recent trace, or nil.
func (f *Fake) LastTrace() *Trace {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.traces) == 0 {
		return nil
	}
	return f.traces[len(f.traces)-1]
}

// TraceConfigs returns the configs passed to StartTrace.
func (f *Fake) TraceConfigs() []backend.TraceConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.TraceConfig(nil), f.configs...)
}

// KernelConfigs returns the configs passed to StartKernelTrace.
func (f *Fake) KernelConfigs() []backend.KernelTraceConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.KernelTraceConfig(nil), f.kernel...)
}

// StoppedNames returns the names passed to StopByName.
func (f *Fake) StoppedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stoppedNames...)
}

// Trace is a Fake trace.
type Trace struct {
	name    string
	cb      backend.Callback
	script  []Emit
	file    bool
	stopErr error
	hang    bool

	stopOnce sync.Once
	stopCh   chan struct{}

	mu    sync.Mutex
	stats backend.TraceStats
}

func (t *Trace) Name() string { return t.name }

func (t *Trace) Process() error {
	for _, e := range t.script {
		select {
		case <-t.stopCh:
			return nil
		default:
		}
		t.cb(&e.Record, e.Schema)
	}
	if t.file {
		return nil
	}
	<-t.stopCh
	return nil
}

func (t *Trace) Stop() error {
	if !t.hang {
		t.Release()
	}
	return t.stopErr
}

// Release unblocks Process regardless of StopHangs.
func (t *Trace) Release() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Stopped reports whether Process was told to return.
func (t *Trace) Stopped() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

// Emit delivers rec through the trace callback on the calling goroutine.
func (t *Trace) Emit(rec backend.Record, schema backend.Schema) {
	t.cb(&rec, schema)
}

func (t *Trace) Stats() backend.TraceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// SetStats sets what Stats returns.
func (t *Trace) SetStats(st backend.TraceStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = st
}
