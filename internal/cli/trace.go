package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"etwtap/internal/config"
	"etwtap/internal/etwerr"
	"etwtap/internal/procinfo"
	"etwtap/internal/provider"
	"etwtap/internal/session"
)

func newTraceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace [provider...]",
		Short: "Trace user-mode providers in real time",
		Long: `Trace enables the given providers (known names or GUIDs), the providers of
any --profile and those listed in the configuration file, then prints or
exports their events until interrupted.`,
		Example: `  etwtap trace Microsoft-Windows-DNS-Client
  etwtap trace --profile network --duration 30s -o net.jsonl
  etwtap trace 22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716 --event-id 1,2 --process-name chrome`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTrace(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringSlice("profile", nil, "Provider profiles to enable ("+joinNames(provider.ProfileNames())+")")
	f.String("level", "", "Level applied to providers given as arguments")
	f.String("keywords", "", "KeywordsAny mask applied to providers given as arguments")
	f.IntSlice("event-id", nil, "Only these event ids (argument providers)")
	f.IntSlice("exclude-event-id", nil, "Drop these event ids (argument providers)")
	f.Uint32("pid", 0, "Only events from this process id (argument providers)")
	f.String("process-name", "", "Only events from processes whose name contains this (argument providers)")
	f.Bool("stack", false, "Capture call stacks (argument providers)")
	f.String("kernel", "", "Also run the kernel logger with these categories")
	f.String("kernel-name", "", "Kernel session name")
	addSessionFlags(cmd)
	addRunFlags(cmd)
	return cmd
}

// argProviders turns positional arguments and the per-provider flags into
// provider entries.
func (a *app) argProviders(args []string) ([]config.ProviderConfig, error) {
	out := make([]config.ProviderConfig, 0, len(args))
	for _, arg := range args {
		pc := config.ProviderConfig{
			Name:        arg,
			Level:       a.v.GetString("level"),
			KeywordsAny: a.v.GetString("keywords"),
			ProcessID:   a.v.GetUint32("pid"),
			ProcessName: a.v.GetString("process-name"),
			StackTrace:  a.v.GetBool("stack"),
		}
		ids, err := uint16List("event-id", a.v.GetIntSlice("event-id"))
		if err != nil {
			return nil, err
		}
		pc.EventIDs = ids
		if pc.ExcludeEventIDs, err = uint16List("exclude-event-id", a.v.GetIntSlice("exclude-event-id")); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, nil
}

func uint16List(flag string, in []int) ([]uint16, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]uint16, 0, len(in))
	for _, v := range in {
		if v < 0 || v > 0xFFFF {
			return nil, etwerr.InvalidConfig("--%s: %d is not a valid event id", flag, v)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func (a *app) runTrace(cmd *cobra.Command, args []string) error {
	extra, err := a.argProviders(args)
	if err != nil {
		return err
	}
	a.cfg.Providers = append(a.cfg.Providers, extra...)
	if a.isSet("profile") {
		a.cfg.Profiles = append(a.cfg.Profiles, a.v.GetStringSlice("profile")...)
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	providers, profileKernel, err := a.cfg.BuildProviders()
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		return etwerr.InvalidConfig("no providers given: pass provider names, --profile or a config file")
	}

	resolver := procinfo.NewResolver()
	needsNames := false
	for _, p := range providers {
		needsNames = needsNames || p.NeedsProcessName()
	}
	if needsNames {
		if err := resolver.Refresh(); err != nil {
			return fmt.Errorf("loading process list: %w", err)
		}
	}

	sess := session.New(a.sessionConfig(),
		session.WithBackend(a.backend),
		session.WithProcessNamer(resolver),
	)
	for _, p := range providers {
		if err := sess.AddProvider(p); err != nil {
			return err
		}
	}
	sources := []liveSource{sess}

	kernelCats := session.KernelCategory(profileKernel)
	if a.cfg.Kernel.Enabled {
		cats, err := session.ParseCategoryList(a.cfg.Kernel.Categories)
		if err != nil {
			return err
		}
		kernelCats |= cats
	}
	if a.isSet("kernel") {
		cats, err := session.ParseCategories(a.v.GetString("kernel"))
		if err != nil {
			return err
		}
		kernelCats |= cats
	}
	if kernelCats != 0 {
		sources = append(sources, session.NewKernelSession(a.kernelConfig(kernelCats),
			session.WithBackend(a.backend)))
	}

	return a.runLive(cmd.Context(), sources...)
}
