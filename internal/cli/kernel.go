package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"etwtap/internal/session"
)

func newKernelCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kernel [category...]",
		Short: "Trace the NT kernel logger",
		Long: `Kernel runs the system kernel logger with the given categories, or the ones
in the configuration file, or all_basic (process, thread and image load).

Categories: ` + joinNames(session.CategoryNames()) + `, all_basic, all or a number.`,
		Example: `  etwtap kernel process image_load
  etwtap kernel "process|network" --max-events 100 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := a.kernelCategories(args)
			if err != nil {
				return err
			}
			k := session.NewKernelSession(a.kernelConfig(cats), session.WithBackend(a.backend))
			return a.runLive(cmd.Context(), k)
		},
	}
	cmd.Flags().String("kernel-name", "", "Kernel session name")
	addSessionFlags(cmd)
	addRunFlags(cmd)
	return cmd
}

func (a *app) kernelCategories(args []string) (session.KernelCategory, error) {
	if len(args) > 0 {
		return session.ParseCategories(strings.Join(args, ","))
	}
	if len(a.cfg.Kernel.Categories) > 0 {
		return session.ParseCategoryList(a.cfg.Kernel.Categories)
	}
	return session.CategoryAllBasic, nil
}

func joinNames(names []string) string { return strings.Join(names, ", ") }
