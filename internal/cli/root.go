// Package cli is the etwtap command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"etwtap/internal/backend"
	"etwtap/internal/config"
	"etwtap/internal/etwerr"
	"etwtap/internal/logger"
	"etwtap/internal/maps"
)

var version = "0.1.0"

// app carries state shared by every command.
type app struct {
	v       *viper.Viper
	cfg     *config.AppConfig
	backend backend.Backend
	out     io.Writer

	configPath string
	envFile    string
}

// NewRootCommand builds the command tree with the platform backend.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{v: viper.New(), backend: backend.New()})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "etwtap",
		Short: "Trace ETW providers and the kernel logger",
		Long: `etwtap starts real-time ETW sessions, reads their events through a bounded
channel and prints, exports or counts them. Recorded .etl files can be replayed
through the same pipeline.

Every flag can also be set through an ETWTAP_<FLAG> environment variable, with
dashes replaced by underscores, or an .env file.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a TOML or YAML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before flags are resolved")
	pf.String("log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newTraceCommand(a),
		newKernelCommand(a),
		newReplayCommand(a),
		newProvidersCommand(a),
		newProcessesCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads the environment and configuration, then configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", a.envFile, err)
		}
	}

	a.v.SetEnvPrefix("ETWTAP")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	path := a.configPath
	if path == "" {
		path = a.v.GetString("config")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if err := maps.SetImplementation(cfg.Session.MapImplementation); err != nil {
		return etwerr.InvalidConfig("session.map_implementation: %v", err)
	}
	if lvl := a.v.GetString("log-level"); lvl != "" {
		cfg.Logging.Defaults.Level = lvl
	}
	if a.out == nil {
		a.out = cmd.OutOrStdout()
	}
	return logger.ConfigureLogging(cfg.Logging)
}

// isSet reports whether key came from a changed flag or the environment.
func (a *app) isSet(key string) bool { return a.v.IsSet(key) }
