package cli

import (
	"time"

	"github.com/spf13/cobra"

	"etwtap/internal/export"
	"etwtap/internal/session"
)

// addRunFlags registers the output and stop-condition flags shared by the
// commands that consume events.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	f.Int("max-events", 0, "Stop after this many events (0 is unlimited)")
	f.StringP("output", "o", "", "Export events to this file")
	f.String("format", "", "Export format: jsonl, csv or sqlite (default from the file extension)")
	f.Bool("compress", false, "Compress JSONL exports with zstd")
	f.Bool("json", false, "Print events as JSON lines")
	f.BoolP("quiet", "q", false, "Do not print events")
	f.Duration("stats-interval", 0, "Log session statistics at this interval (0 disables)")
}

// addSessionFlags registers the flags that shape a live session.
func addSessionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "Session name")
	f.Int("capacity", 0, "Event channel capacity")
	f.Bool("serve", false, "Serve /metrics and /stats while tracing")
	f.String("listen", "", "HTTP listen address for --serve")
}

// runOptions resolves the shared run flags.
func (a *app) runOptions() runOptions {
	return runOptions{
		duration:      a.v.GetDuration("duration"),
		maxEvents:     a.v.GetInt("max-events"),
		json:          a.v.GetBool("json"),
		quiet:         a.v.GetBool("quiet"),
		statsInterval: a.v.GetDuration("stats-interval"),
	}
}

// exportConfig merges the export flags over the file configuration. An
// empty path disables export.
func (a *app) exportConfig() export.Config {
	cfg := a.cfg.Export
	if a.isSet("output") {
		cfg.Path = a.v.GetString("output")
		// The file's format does not apply to a path given on the command line.
		cfg.Format = ""
	}
	if a.isSet("format") {
		cfg.Format = export.Format(a.v.GetString("format"))
	}
	if a.isSet("compress") {
		cfg.Compress = a.v.GetBool("compress")
	}
	return cfg
}

func (a *app) sessionConfig() session.Config {
	sc := a.cfg.Session
	cfg := session.DefaultConfig()
	if sc.Name != "" {
		cfg.Name = sc.Name
	}
	cfg.BufferSizeKB = sc.BufferSizeKB
	cfg.MinBuffers = sc.MinBuffers
	cfg.MaxBuffers = sc.MaxBuffers
	cfg.FlushInterval = time.Duration(sc.FlushIntervalSecs) * time.Second
	cfg.StopIfExists = sc.StopIfExists
	cfg.ChannelCapacity = sc.ChannelCapacity

	if a.isSet("name") {
		cfg.Name = a.v.GetString("name")
	}
	if a.isSet("capacity") {
		cfg.ChannelCapacity = a.v.GetInt("capacity")
	}
	return cfg
}

func (a *app) kernelConfig(categories session.KernelCategory) session.KernelConfig {
	sc := a.cfg.Session
	cfg := session.DefaultKernelConfig()
	if a.cfg.Kernel.Name != "" {
		cfg.Name = a.cfg.Kernel.Name
	}
	cfg.Categories = categories
	cfg.BufferSizeKB = sc.BufferSizeKB
	cfg.MinBuffers = sc.MinBuffers
	cfg.MaxBuffers = sc.MaxBuffers
	cfg.FlushInterval = time.Duration(sc.FlushIntervalSecs) * time.Second
	cfg.StopIfExists = sc.StopIfExists
	cfg.ChannelCapacity = sc.ChannelCapacity

	if a.isSet("kernel-name") {
		cfg.Name = a.v.GetString("kernel-name")
	}
	if a.isSet("capacity") {
		cfg.ChannelCapacity = a.v.GetInt("capacity")
	}
	return cfg
}

// serverEnabled resolves --serve and --listen over the file configuration.
func (a *app) serverEnabled() bool {
	if a.isSet("listen") {
		a.cfg.Server.ListenAddress = a.v.GetString("listen")
	}
	if a.isSet("serve") {
		a.cfg.Server.Enabled = a.v.GetBool("serve")
	}
	return a.cfg.Server.Enabled
}
