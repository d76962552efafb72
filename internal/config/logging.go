package config

// LoggingConfig contains the complete logging configuration
type LoggingConfig struct {
	// Default logging settings applied to all loggers
	Defaults LogDefaults `toml:"defaults" yaml:"defaults"`

	// Output configurations - can have multiple outputs
	Outputs []LogOutput `toml:"outputs" yaml:"outputs"`

	// Tracing library log level (default: "warn")
	LibLevel string `toml:"lib_level" yaml:"lib_level"`
}

// LogDefaults contains default logger settings
type LogDefaults struct {
	// Log level (default: "info")
	Level string `toml:"level" yaml:"level"`

	// Include caller information (default: 0)
	Caller int `toml:"caller" yaml:"caller"`

	// Time field name (default: "time")
	TimeField string `toml:"time_field" yaml:"time_field"`

	// Time format (default: "" = RFC3339 with milliseconds)
	TimeFormat string `toml:"time_format" yaml:"time_format"`

	// Time zone (default: "Local")
	TimeLocation string `toml:"time_location" yaml:"time_location"`
}

// LogOutput represents a single output configuration
type LogOutput struct {
	// Output type: "console", "file", "syslog", "eventlog"
	Type string `toml:"type" yaml:"type"`

	// Enable this output (default: true)
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// Configuration specific to the output type
	Console  *ConsoleConfig  `toml:"console,omitempty" yaml:"console,omitempty"`
	File     *FileConfig     `toml:"file,omitempty" yaml:"file,omitempty"`
	Syslog   *SyslogConfig   `toml:"syslog,omitempty" yaml:"syslog,omitempty"`
	Eventlog *EventlogConfig `toml:"eventlog,omitempty" yaml:"eventlog,omitempty"`
}

// ConsoleConfig contains console/terminal output settings
type ConsoleConfig struct {
	// Use fast JSON output (default: false)
	FastIO bool `toml:"fast_io" yaml:"fast_io"`

	// Output format when fast_io=false (default: "auto")
	Format string `toml:"format" yaml:"format"`

	// Enable colored output (default: true)
	ColorOutput bool `toml:"color_output" yaml:"color_output"`

	// Quote string values (default: true)
	QuoteString bool `toml:"quote_string" yaml:"quote_string"`

	// Output destination (default: "stderr")
	Writer string `toml:"writer" yaml:"writer"`

	// Use asynchronous writing (default: false)
	Async bool `toml:"async" yaml:"async"`
}

// FileConfig contains file output settings
type FileConfig struct {
	// Log file path (required)
	Filename string `toml:"filename" yaml:"filename"`

	// Maximum file size in megabytes (default: 10)
	MaxSize int64 `toml:"max_size" yaml:"max_size"`

	// Maximum number of old log files to keep (default: 7)
	MaxBackups int `toml:"max_backups" yaml:"max_backups"`

	// Time format for rotated filenames (default: "2006-01-02T15-04-05")
	TimeFormat string `toml:"time_format" yaml:"time_format"`

	// Use local time for rotation timestamps (default: true)
	LocalTime bool `toml:"local_time" yaml:"local_time"`

	// Include hostname in filename (default: true)
	HostName bool `toml:"host_name" yaml:"host_name"`

	// Include process ID in filename (default: true)
	ProcessID bool `toml:"process_id" yaml:"process_id"`

	// Create directory if it doesn't exist (default: true)
	EnsureFolder bool `toml:"ensure_folder" yaml:"ensure_folder"`

	// Use asynchronous writing (default: true)
	Async bool `toml:"async" yaml:"async"`
}

// SyslogConfig contains syslog output settings
type SyslogConfig struct {
	// Network protocol (default: "udp")
	Network string `toml:"network" yaml:"network"`

	// Syslog server address (default: "localhost:514")
	Address string `toml:"address" yaml:"address"`

	// Hostname for syslog messages (default: system hostname)
	Hostname string `toml:"hostname" yaml:"hostname"`

	// Syslog tag/program name (default: "etwtap")
	Tag string `toml:"tag" yaml:"tag"`

	// Message prefix marker (default: "@cee:")
	Marker string `toml:"marker" yaml:"marker"`

	// Use asynchronous writing (default: true)
	Async bool `toml:"async" yaml:"async"`
}

// EventlogConfig contains Windows Event Log settings
type EventlogConfig struct {
	// Event source name (default: "etwtap")
	Source string `toml:"source" yaml:"source"`

	// Event ID for log entries (default: 1000)
	ID int `toml:"id" yaml:"id"`

	// Target host (default: local machine)
	Host string `toml:"host" yaml:"host"`

	// Use asynchronous writing (default: false)
	Async bool `toml:"async" yaml:"async"`
}

func defaultLogging() LoggingConfig {
	return LoggingConfig{
		Defaults: LogDefaults{
			Level:        "info",
			Caller:       0,
			TimeField:    "time",
			TimeFormat:   "",
			TimeLocation: "Local",
		},
		Outputs: []LogOutput{
			{
				Type:    "console",
				Enabled: true,
				Console: &ConsoleConfig{
					FastIO:      false,
					Format:      "auto",
					ColorOutput: true,
					QuoteString: true,
					Writer:      "stderr",
					Async:       false,
				},
			},
			{
				Type:    "file",
				Enabled: false,
				File: &FileConfig{
					Filename:     "logs/etwtap.log",
					MaxSize:      10, // 10MB
					MaxBackups:   7,
					TimeFormat:   "2006-01-02T15-04-05",
					LocalTime:    true,
					HostName:     true,
					ProcessID:    true,
					EnsureFolder: true,
					Async:        true,
				},
			},
			{
				Type:    "syslog",
				Enabled: false,
				Syslog: &SyslogConfig{
					Network: "udp",
					Address: "localhost:514",
					Tag:     "etwtap",
					Marker:  "@cee:",
					Async:   true,
				},
			},
			{
				Type:    "eventlog",
				Enabled: false,
				Eventlog: &EventlogConfig{
					Source: "etwtap",
					ID:     1000,
				},
			},
		},
		LibLevel: "warn",
	}
}
