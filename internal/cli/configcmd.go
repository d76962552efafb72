package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"etwtap/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate and check configuration files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "generate [path]",
			Short: "Write an example configuration file",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "config.example.toml"
				if len(args) == 1 {
					path = args[0]
				}
				if err := config.GenerateExampleConfig(path); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Generated %s successfully\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the file given with --config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.cfg.Validate(); err != nil {
					return err
				}
				providers, kernel, err := a.cfg.BuildProviders()
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Configuration OK: %d providers, profile kernel mask 0x%x\n", len(providers), kernel)
				return nil
			},
		},
	)
	return cmd
}
