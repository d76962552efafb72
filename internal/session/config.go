package session

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"

	"etwtap/internal/etwerr"
)

// Mode selects where a user-mode session delivers its events.
type Mode int

const (
	ModeRealTime Mode = iota
	ModeFile
)

func (m Mode) String() string {
	switch m {
	case ModeRealTime:
		return "realtime"
	case ModeFile:
		return "file"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// maxNameLen is the longest session name the OS accepts, in characters.
const maxNameLen = 1024

// Default buffer geometry.
const (
	DefaultBufferSizeKB    = 64
	DefaultMinBuffers      = 64
	DefaultMaxBuffers      = 128
	DefaultFlushInterval   = time.Second
	DefaultChannelCapacity = 10000
	DefaultKernelName      = "etwtap-kernel"
)

// Config configures a user-mode Session.
type Config struct {
	Name            string
	Mode            Mode
	LogFile         string // required in ModeFile
	BufferSizeKB    uint32
	MinBuffers      uint32
	MaxBuffers      uint32
	FlushInterval   time.Duration
	StopIfExists    bool
	ChannelCapacity int
}

// DefaultConfig returns a real-time configuration with a unique name.
func DefaultConfig() Config {
	return Config{
		Name:            "etwtap-" + xid.New().String(),
		Mode:            ModeRealTime,
		BufferSizeKB:    DefaultBufferSizeKB,
		MinBuffers:      DefaultMinBuffers,
		MaxBuffers:      DefaultMaxBuffers,
		FlushInterval:   DefaultFlushInterval,
		StopIfExists:    true,
		ChannelCapacity: DefaultChannelCapacity,
	}
}

func (c Config) Validate() error {
	if err := validateCommon(c.Name, c.BufferSizeKB, c.MinBuffers, c.MaxBuffers, c.ChannelCapacity); err != nil {
		return err
	}
	if c.Mode == ModeFile && c.LogFile == "" {
		return etwerr.InvalidConfig("file mode requires a log file")
	}
	return nil
}

// KernelConfig configures a KernelSession.
type KernelConfig struct {
	Name            string
	Categories      KernelCategory
	BufferSizeKB    uint32
	MinBuffers      uint32
	MaxBuffers      uint32
	FlushInterval   time.Duration
	StopIfExists    bool
	ChannelCapacity int
}

// DefaultKernelConfig returns the basic process, thread and image categories.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		Name:            DefaultKernelName,
		Categories:      CategoryAllBasic,
		BufferSizeKB:    DefaultBufferSizeKB,
		MinBuffers:      DefaultMinBuffers,
		MaxBuffers:      DefaultMaxBuffers,
		FlushInterval:   DefaultFlushInterval,
		StopIfExists:    true,
		ChannelCapacity: DefaultChannelCapacity,
	}
}

func (c KernelConfig) Validate() error {
	if err := validateCommon(c.Name, c.BufferSizeKB, c.MinBuffers, c.MaxBuffers, c.ChannelCapacity); err != nil {
		return err
	}
	if c.Categories == 0 {
		return etwerr.InvalidConfig("no kernel categories enabled")
	}
	return nil
}

func validateCommon(name string, bufKB, minBuf, maxBuf uint32, capacity int) error {
	if name == "" {
		return etwerr.InvalidConfig("session name is empty")
	}
	if n := utf8.RuneCountInString(name); n > maxNameLen {
		return etwerr.InvalidConfig("session name is %d characters, limit is %d", n, maxNameLen)
	}
	if bufKB == 0 {
		return etwerr.InvalidConfig("buffer size must be positive")
	}
	if minBuf > maxBuf {
		return etwerr.InvalidConfig("min buffers (%d) exceeds max buffers (%d)", minBuf, maxBuf)
	}
	if capacity <= 0 {
		return etwerr.InvalidConfig("channel capacity must be positive, got %d", capacity)
	}
	return nil
}

// flushSeconds rounds the flush interval up to whole seconds.
func flushSeconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32((d + time.Second - 1) / time.Second)
}
