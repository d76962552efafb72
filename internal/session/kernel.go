package session

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"etwtap/internal/backend"
	"etwtap/internal/etwerr"
	"etwtap/internal/event"
	"etwtap/internal/stats"
)

// KernelCategory is a bitmask of NT Kernel Logger event groups.
type KernelCategory uint32

const (
	CategoryProcess    KernelCategory = 0x00000001
	CategoryThread     KernelCategory = 0x00000002
	CategoryImageLoad  KernelCategory = 0x00000004
	CategoryDpc        KernelCategory = 0x00000020
	CategoryInterrupt  KernelCategory = 0x00000040
	CategorySystemCall KernelCategory = 0x00000080
	CategoryDiskIo     KernelCategory = 0x00000100
	CategoryDiskFileIo KernelCategory = 0x00000200
	CategoryPageFault  KernelCategory = 0x00001000
	CategoryHardFault  KernelCategory = 0x00002000
	CategoryNetwork    KernelCategory = 0x00010000
	CategoryRegistry   KernelCategory = 0x00020000
	CategorySplitIo    KernelCategory = 0x00200000
	CategoryPool       KernelCategory = 0x00400000
	CategoryFileIo     KernelCategory = 0x02000000
	CategoryFileIoInit KernelCategory = 0x04000000

	CategoryAllBasic KernelCategory = CategoryProcess | CategoryThread | CategoryImageLoad
	CategoryAll      KernelCategory = 0xFFFFFFFF
)

var categoryNames = []struct {
	name string
	cat  KernelCategory
}{
	{"process", CategoryProcess},
	{"thread", CategoryThread},
	{"image_load", CategoryImageLoad},
	{"dpc", CategoryDpc},
	{"interrupt", CategoryInterrupt},
	{"system_call", CategorySystemCall},
	{"disk_io", CategoryDiskIo},
	{"disk_file_io", CategoryDiskFileIo},
	{"page_fault", CategoryPageFault},
	{"hard_fault", CategoryHardFault},
	{"network", CategoryNetwork},
	{"registry", CategoryRegistry},
	{"split_io", CategorySplitIo},
	{"pool", CategoryPool},
	{"file_io", CategoryFileIo},
	{"file_io_init", CategoryFileIoInit},
}

// CategoryNames lists the named categories in bit order.
func CategoryNames() []string {
	names := make([]string, 0, len(categoryNames))
	for _, cn := range categoryNames {
		names = append(names, cn.name)
	}
	return names
}

// String lists the set bits by name, joined with "|". Bits without a name
// are rendered in hex.
func (k KernelCategory) String() string {
	switch k {
	case 0:
		return "none"
	case CategoryAll:
		return "all"
	}
	var parts []string
	rest := k
	for _, cn := range categoryNames {
		if k&cn.cat != 0 {
			parts = append(parts, cn.name)
			rest &^= cn.cat
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseCategories accepts names ("process", "disk_io", "all_basic", "all"),
// hex or decimal masks, separated by commas or "|".
func ParseCategories(s string) (KernelCategory, error) {
	var out KernelCategory
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ' ' })
	for _, f := range fields {
		c, err := parseCategory(f)
		if err != nil {
			return 0, err
		}
		out |= c
	}
	return out, nil
}

// ParseCategoryList is ParseCategories over a list of tokens.
func ParseCategoryList(list []string) (KernelCategory, error) {
	return ParseCategories(strings.Join(list, ","))
}

func parseCategory(tok string) (KernelCategory, error) {
	name := strings.ReplaceAll(strings.ToLower(tok), "-", "_")
	switch name {
	case "all":
		return CategoryAll, nil
	case "all_basic", "basic":
		return CategoryAllBasic, nil
	}
	for _, cn := range categoryNames {
		if cn.name == name || strings.ReplaceAll(cn.name, "_", "") == name {
			return cn.cat, nil
		}
	}
	if v, err := strconv.ParseUint(name, 0, 32); err == nil {
		return KernelCategory(v), nil
	}
	return 0, etwerr.InvalidConfig("unknown kernel category %q", tok)
}

const kindKernel = "kernel"

// KernelSession traces kernel activity through the NT Kernel Logger.
type KernelSession struct {
	cfg KernelConfig // Categories guarded by c.mu
	c   *core
}

// NewKernelSession creates a kernel session.
func NewKernelSession(cfg KernelConfig, opts ...Option) *KernelSession {
	k := &KernelSession{
		cfg: cfg,
		c:   newCore(cfg.ChannelCapacity, buildOptions(opts)),
	}
	runtime.SetFinalizer(k, func(k *KernelSession) { _ = k.c.close() })
	return k
}

func (k *KernelSession) Name() string { return k.cfg.Name }

// EnableCategory adds cat to the mask. It takes effect at the next Start.
func (k *KernelSession) EnableCategory(cat KernelCategory) {
	k.c.mu.Lock()
	defer k.c.mu.Unlock()
	k.cfg.Categories |= cat
}

// SetCategories replaces the mask. It takes effect at the next Start.
func (k *KernelSession) SetCategories(cats KernelCategory) {
	k.c.mu.Lock()
	defer k.c.mu.Unlock()
	k.cfg.Categories = cats
}

func (k *KernelSession) Categories() KernelCategory {
	k.c.mu.RLock()
	defer k.c.mu.RUnlock()
	return k.cfg.Categories
}

func (k *KernelSession) Start() error {
	return k.c.start(k.launch)
}

func (k *KernelSession) launch(cb backend.Callback) (backend.Trace, func(), error) {
	k.c.mu.RLock()
	cfg := k.cfg
	k.c.mu.RUnlock()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	release, ok := acquireName(kindKernel, cfg.Name)
	if !ok {
		return nil, nil, etwerr.InvalidConfig("kernel session name %q is already in use", cfg.Name)
	}
	if cfg.StopIfExists {
		k.c.stopByNameQuietly(backend.KernelLoggerName)
		k.c.stopByNameQuietly(cfg.Name)
	}
	k.c.stats.SetBufferInfo(cfg.BufferSizeKB, cfg.MaxBuffers)

	trace, err := k.c.backend.StartKernelTrace(backend.KernelTraceConfig{
		Name:          cfg.Name,
		Flags:         uint32(cfg.Categories),
		BufferSizeKB:  cfg.BufferSizeKB,
		MinBuffers:    cfg.MinBuffers,
		MaxBuffers:    cfg.MaxBuffers,
		FlushInterval: flushSeconds(cfg.FlushInterval),
	}, cb)
	if err != nil {
		release()
		return nil, nil, etwerr.StartTraceFailed(err)
	}
	return trace, release, nil
}

func (k *KernelSession) Stop() error { return k.c.stop() }

func (k *KernelSession) Close() error {
	runtime.SetFinalizer(k, nil)
	return k.c.close()
}

func (k *KernelSession) State() State                       { return k.c.currentState() }
func (k *KernelSession) IsRunning() bool                    { return k.State() == StateRunning }
func (k *KernelSession) Stats() stats.SessionStats          { return k.c.snapshot() }
func (k *KernelSession) ResetStats()                        { k.c.resetStats() }
func (k *KernelSession) Done() <-chan struct{}              { return k.c.pipe.doneCh() }
func (k *KernelSession) Pending() (int, int)                { return k.c.pipe.Len(), k.c.pipe.Cap() }
func (k *KernelSession) NextEvent() (*event.Event, bool)    { return k.c.next() }
func (k *KernelSession) TryNextEvent() (*event.Event, bool) { return k.c.tryNext() }

func (k *KernelSession) NextEventTimeout(d time.Duration) (*event.Event, bool) {
	return k.c.nextTimeout(d)
}

func (k *KernelSession) NextEventContext(ctx context.Context) (*event.Event, error) {
	return k.c.nextContext(ctx)
}
