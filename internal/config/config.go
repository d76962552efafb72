package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"etwtap/internal/etwerr"
	"etwtap/internal/export"
	"etwtap/internal/filter"
	"etwtap/internal/maps"
	"etwtap/internal/provider"
)

// Configuration system:
// - TOML is the primary format, YAML is accepted by extension
// - config.example.toml is written by `etwtap config generate`
// - Flags and ETWTAP_* environment variables override file values in the CLI

// AppConfig represents the complete application configuration
type AppConfig struct {
	// HTTP server for metrics and stats
	Server ServerConfig `toml:"server" yaml:"server"`

	// Real-time session settings
	Session SessionConfig `toml:"session" yaml:"session"`

	// Kernel logger settings
	Kernel KernelConfig `toml:"kernel" yaml:"kernel"`

	// User-mode providers to enable
	Providers []ProviderConfig `toml:"providers" yaml:"providers"`

	// Built-in provider profiles merged with Providers
	Profiles []string `toml:"profiles" yaml:"profiles"`

	// Event export (disabled when path is empty)
	Export export.Config `toml:"export" yaml:"export"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Serve /metrics and /stats while tracing (default: false)
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// Listen address (default: "localhost:9189")
	ListenAddress string `toml:"listen_address" yaml:"listen_address"`

	// Metrics endpoint path (default: "/metrics")
	MetricsPath string `toml:"metrics_path" yaml:"metrics_path"`

	// Enable pprof endpoint for debugging (default: false)
	PprofEnabled bool `toml:"pprof_enabled" yaml:"pprof_enabled"`
}

// SessionConfig mirrors the session buffer settings.
type SessionConfig struct {
	// Session name (default: generated "etwtap-<id>")
	Name string `toml:"name" yaml:"name"`

	// Per-buffer size in KB (default: 64)
	BufferSizeKB uint32 `toml:"buffer_size_kb" yaml:"buffer_size_kb"`

	// Buffer pool bounds (default: 64 / 128)
	MinBuffers uint32 `toml:"min_buffers" yaml:"min_buffers"`
	MaxBuffers uint32 `toml:"max_buffers" yaml:"max_buffers"`

	// Flush interval in seconds (default: 1)
	FlushIntervalSecs uint32 `toml:"flush_interval_secs" yaml:"flush_interval_secs"`

	// Stop a leftover session with the same name before starting (default: true)
	StopIfExists bool `toml:"stop_if_exists" yaml:"stop_if_exists"`

	// Events held between the backend and the consumer (default: 10000)
	ChannelCapacity int `toml:"channel_capacity" yaml:"channel_capacity"`

	// Concurrent map behind the session registry and process cache: "xsync" or "cornelk" (default: "xsync")
	MapImplementation string `toml:"map_implementation" yaml:"map_implementation"`
}

// KernelConfig contains kernel logger settings
type KernelConfig struct {
	// Start the kernel logger alongside the provider session (default: false)
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// Session name (default: "etwtap-kernel")
	Name string `toml:"name" yaml:"name"`

	// Category names, e.g. "process", "image_load", "all_basic"
	Categories []string `toml:"categories" yaml:"categories"`
}

// ProviderConfig describes one provider in the configuration file.
type ProviderConfig struct {
	// Known provider name or GUID
	Name string `toml:"name" yaml:"name"`

	// Level name or number (default: "verbose")
	Level string `toml:"level" yaml:"level"`

	// Keyword masks as hex or decimal strings (default: any)
	KeywordsAny string `toml:"keywords_any" yaml:"keywords_any"`
	KeywordsAll string `toml:"keywords_all" yaml:"keywords_all"`

	// Filters, ANDed together. Zero values are unset.
	EventIDs        []uint16 `toml:"event_ids" yaml:"event_ids"`
	ExcludeEventIDs []uint16 `toml:"exclude_event_ids" yaml:"exclude_event_ids"`
	Opcodes         []uint8  `toml:"opcodes" yaml:"opcodes"`
	ProcessID       uint32   `toml:"process_id" yaml:"process_id"`
	ProcessName     string   `toml:"process_name" yaml:"process_name"`

	// Capture call stacks (default: false)
	StackTrace bool `toml:"stack_trace" yaml:"stack_trace"`

	// Enable this provider (default: true)
	Enabled *bool `toml:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Enabled:       false,
			ListenAddress: "localhost:9189",
			MetricsPath:   "/metrics",
			PprofEnabled:  false,
		},
		Session: SessionConfig{
			BufferSizeKB:      64,
			MinBuffers:        64,
			MaxBuffers:        128,
			FlushIntervalSecs: 1,
			StopIfExists:      true,
			ChannelCapacity:   10000,
			MapImplementation: maps.DefaultImplementation,
		},
		Kernel: KernelConfig{
			Enabled:    false,
			Name:       "etwtap-kernel",
			Categories: []string{"all_basic"},
		},
		Providers: []ProviderConfig{},
		Profiles:  []string{},
		Export: export.Config{
			Format:    export.FormatJSONL,
			BatchSize: export.DefaultBatchSize,
		},
		Logging: defaultLogging(),
	}
}

// LoadConfig loads configuration from a TOML or YAML file, falling back to
// defaults for anything the file leaves out.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If no config file specified, use defaults
	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("config file not found: %s", configPath)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	default:
		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	return config, nil
}

// SaveConfig saves the configuration to a TOML file
func SaveConfig(configPath string, config *AppConfig) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", configPath, err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// ExampleConfig is DefaultConfig with a sample provider and profile filled
// in, so the generated file shows every section.
func ExampleConfig() *AppConfig {
	config := DefaultConfig()
	config.Providers = []ProviderConfig{
		{
			Name:        "Microsoft-Windows-Kernel-Process",
			Level:       "information",
			KeywordsAny: "0x10",
			EventIDs:    []uint16{1, 2},
		},
	}
	config.Profiles = []string{"dns"}
	config.Export.Path = "events.jsonl"
	return config
}

// GenerateExampleConfig writes ExampleConfig as TOML
func GenerateExampleConfig(outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	header := `# etwtap example configuration
# Copy this file to create your own configuration and modify as needed.
# Every value can also be set with a flag or an ETWTAP_* environment variable.
#
# Format: TOML (Tom's Obvious, Minimal Language)

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := toml.NewEncoder(file).Encode(ExampleConfig()); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors. Kernel category names are
// checked when the kernel session is built.
func (c *AppConfig) Validate() error {
	if c.Server.Enabled {
		if c.Server.ListenAddress == "" {
			return etwerr.InvalidConfig("server.listen_address cannot be empty")
		}
		if !strings.HasPrefix(c.Server.MetricsPath, "/") {
			return etwerr.InvalidConfig("server.metrics_path must start with '/'")
		}
	}

	s := c.Session
	if s.MinBuffers > s.MaxBuffers {
		return etwerr.InvalidConfig("session.min_buffers (%d) exceeds session.max_buffers (%d)", s.MinBuffers, s.MaxBuffers)
	}
	if s.BufferSizeKB == 0 {
		return etwerr.InvalidConfig("session.buffer_size_kb must be positive")
	}
	if s.ChannelCapacity <= 0 {
		return etwerr.InvalidConfig("session.channel_capacity must be positive")
	}
	if err := maps.ValidImplementation(s.MapImplementation); err != nil {
		return etwerr.InvalidConfig("session.map_implementation: %v", err)
	}

	if c.Kernel.Enabled && len(c.Kernel.Categories) == 0 {
		return etwerr.InvalidConfig("kernel.categories cannot be empty when the kernel logger is enabled")
	}

	if _, _, err := c.BuildProviders(); err != nil {
		return err
	}

	if c.Export.Path != "" {
		if err := c.Export.Validate(); err != nil {
			return err
		}
	}

	hasEnabledOutput := false
	for _, output := range c.Logging.Outputs {
		if output.Enabled {
			hasEnabledOutput = true
			break
		}
	}
	if !hasEnabledOutput {
		return etwerr.InvalidConfig("at least one logging output must be enabled")
	}

	return nil
}

// BuildProviders expands profiles and provider entries into one merged list.
// The returned mask is the union of kernel categories the profiles asked for.
func (c *AppConfig) BuildProviders() ([]provider.Provider, uint32, error) {
	var lists [][]provider.Provider
	var kernel uint32
	for _, name := range c.Profiles {
		def, err := provider.Profile(name)
		if err != nil {
			return nil, 0, err
		}
		lists = append(lists, def.Providers)
		kernel |= def.KernelCategories
	}

	explicit := make([]provider.Provider, 0, len(c.Providers))
	for i, pc := range c.Providers {
		p, err := pc.Build()
		if err != nil {
			return nil, 0, fmt.Errorf("providers[%d]: %w", i, err)
		}
		explicit = append(explicit, p)
	}
	lists = append(lists, explicit)

	return provider.Merge(lists...), kernel, nil
}

// Build converts the entry into a provider.
func (pc ProviderConfig) Build() (provider.Provider, error) {
	p, err := provider.Lookup(pc.Name)
	if err != nil {
		return provider.Provider{}, err
	}
	if pc.Level != "" {
		if p.Level, err = provider.ParseLevel(pc.Level); err != nil {
			return provider.Provider{}, err
		}
	}
	if pc.KeywordsAny != "" {
		if p.KeywordsAny, err = parseKeywords("keywords_any", pc.KeywordsAny); err != nil {
			return provider.Provider{}, err
		}
	}
	if pc.KeywordsAll != "" {
		if p.KeywordsAll, err = parseKeywords("keywords_all", pc.KeywordsAll); err != nil {
			return provider.Provider{}, err
		}
	}

	b := filter.NewBuilder()
	if len(pc.EventIDs) > 0 {
		b.EventIDs(pc.EventIDs...)
	}
	if len(pc.ExcludeEventIDs) > 0 {
		b.ExcludeEventIDs(pc.ExcludeEventIDs...)
	}
	if len(pc.Opcodes) > 0 {
		b.Opcodes(pc.Opcodes...)
	}
	if pc.ProcessID != 0 {
		b.ProcessID(pc.ProcessID)
	}
	if pc.ProcessName != "" {
		b.ProcessName(pc.ProcessName)
	}
	p.Filters = b.Filters()

	p.StackTrace = pc.StackTrace
	if pc.Enabled != nil {
		p.Enabled = *pc.Enabled
	}
	return p, nil
}

// parseKeywords accepts "0x"-prefixed hex, octal or decimal.
func parseKeywords(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, etwerr.InvalidConfig("%s: invalid keyword mask %q", field, s)
	}
	return v, nil
}
