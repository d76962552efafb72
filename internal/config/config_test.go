package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etwtap/internal/etwerr"
	"etwtap/internal/export"
	"etwtap/internal/filter"
	"etwtap/internal/provider"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestConfigData tests defaults, file overlays and validation
func TestConfigData(t *testing.T) {
	tests := []struct {
		name       string
		config     *AppConfig
		configTOML string
		setupFunc  func(*AppConfig)
		expectErr  bool
		validate   func(*testing.T, *AppConfig)
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
			validate: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, "localhost:9189", c.Server.ListenAddress)
				assert.Equal(t, uint32(64), c.Session.BufferSizeKB)
				assert.Equal(t, 10000, c.Session.ChannelCapacity)
				assert.Equal(t, "info", c.Logging.Defaults.Level)
				assert.Len(t, c.Logging.Outputs, 4)
			},
		},
		{
			name: "providers and profiles",
			configTOML: `
profiles = ["dns"]

[[providers]]
name = "Microsoft-Windows-Kernel-File"
level = "warn"
keywords_any = "0x10"
event_ids = [12, 14]
process_name = "notepad"

[[providers]]
name = "{2f07e2ee-15db-40f1-90ef-9d7ba282188a}"
enabled = false
`,
			validate: func(t *testing.T, c *AppConfig) {
				providers, kernel, err := c.BuildProviders()
				require.NoError(t, err)
				assert.Zero(t, kernel)
				require.Len(t, providers, 3)

				byGUID := map[string]provider.Provider{}
				for _, p := range providers {
					byGUID[p.GUID.String()] = p
				}
				file := byGUID[provider.KernelFileGUID.String()]
				assert.Equal(t, provider.LevelWarning, file.Level)
				assert.Equal(t, uint64(0x10), file.KeywordsAny)
				require.Len(t, file.Filters, 2)
				assert.Equal(t, filter.KindEventIDs, file.Filters[0].Kind())
				assert.True(t, file.NeedsProcessName())

				assert.False(t, byGUID[provider.TCPIPGUID.String()].Enabled)
				assert.True(t, byGUID[provider.DNSClientGUID.String()].Enabled)
			},
		},
		{
			name:   "invalid empty listen address",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Server.Enabled = true
				c.Server.ListenAddress = ""
			},
			expectErr: true,
		},
		{
			name:   "invalid metrics path",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Server.Enabled = true
				c.Server.MetricsPath = "metrics"
			},
			expectErr: true,
		},
		{
			name:   "invalid buffer bounds",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Session.MinBuffers = 200
			},
			expectErr: true,
		},
		{
			name:   "invalid channel capacity",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Session.ChannelCapacity = 0
			},
			expectErr: true,
		},
		{
			name:   "invalid map implementation",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Session.MapImplementation = "btree"
			},
			expectErr: true,
		},
		{
			name:   "valid cornelk map implementation",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Session.MapImplementation = "cornelk"
			},
			expectErr: false,
		},
		{
			name:   "invalid unknown profile",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Profiles = []string{"everything"}
			},
			expectErr: true,
		},
		{
			name:   "invalid provider keywords",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Providers = []ProviderConfig{{Name: "Microsoft-Windows-DNS-Client", KeywordsAny: "0xZZ"}}
			},
			expectErr: true,
		},
		{
			name:   "invalid export",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Export = export.Config{Format: export.FormatCSV, Path: "out.csv", Compress: true}
			},
			expectErr: true,
		},
		{
			name:   "invalid kernel without categories",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Kernel.Enabled = true
				c.Kernel.Categories = nil
			},
			expectErr: true,
		},
		{
			name:   "invalid no outputs enabled",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				for i := range c.Logging.Outputs {
					c.Logging.Outputs[i].Enabled = false
				}
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg *AppConfig
			if tt.config != nil {
				cfg = tt.config
				if tt.setupFunc != nil {
					tt.setupFunc(cfg)
				}
			} else {
				var err error
				cfg, err = LoadConfig(writeFile(t, "test.toml", tt.configTOML))
				require.NoError(t, err)
			}

			err := cfg.Validate()
			if tt.expectErr {
				assert.ErrorIs(t, err, etwerr.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestProfileKernelCategories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = []string{"process", "network"}
	providers, kernel, err := cfg.BuildProviders()
	require.NoError(t, err)
	assert.NotEmpty(t, providers)
	assert.Equal(t, uint32(0x1|0x4|0x10000), kernel)
}

// TestLoadConfig tests loading by extension with fallbacks
func TestLoadConfig(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.toml"))
		assert.Error(t, err)
	})

	t.Run("invalid TOML returns error", func(t *testing.T) {
		_, err := LoadConfig(writeFile(t, "bad.toml", "[server]\ninvalid_syntax [\n"))
		assert.Error(t, err)
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, "cfg.yaml", `
session:
  name: yaml-session
  channel_capacity: 42
kernel:
  enabled: true
  categories: [process, image_load]
providers:
  - name: Microsoft-Windows-DNS-Client
    opcodes: [1, 2]
export:
  path: out.db
  format: sqlite
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "yaml-session", cfg.Session.Name)
		assert.Equal(t, 42, cfg.Session.ChannelCapacity)
		assert.Equal(t, uint32(128), cfg.Session.MaxBuffers, "defaults survive")
		assert.Equal(t, []string{"process", "image_load"}, cfg.Kernel.Categories)
		assert.Equal(t, []uint8{1, 2}, cfg.Providers[0].Opcodes)
		assert.Equal(t, export.FormatSQLite, cfg.Export.Format)
	})
}

// TestSaveConfig tests saving configurations
func TestSaveConfig(t *testing.T) {
	t.Run("save and load roundtrip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "subdir", "test.toml")

		original := DefaultConfig()
		original.Server.ListenAddress = ":7777"
		original.Logging.Defaults.Level = "debug"
		original.Kernel.Categories = []string{"process", "thread"}

		require.NoError(t, SaveConfig(configPath, original))

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, ":7777", loaded.Server.ListenAddress)
		assert.Equal(t, "debug", loaded.Logging.Defaults.Level)
		assert.Equal(t, []string{"process", "thread"}, loaded.Kernel.Categories)
	})

	t.Run("invalid path", func(t *testing.T) {
		assert.Error(t, SaveConfig("\x00invalid", DefaultConfig()))
	})
}

// TestConfigGenerator tests configuration generation
func TestConfigGenerator(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "example.toml")
	require.NoError(t, GenerateExampleConfig(configPath))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"dns"}, cfg.Profiles)
	require.Len(t, cfg.Providers, 1)
	assert.Nil(t, cfg.Providers[0].Enabled)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "etwtap example configuration")
}
