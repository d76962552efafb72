package cli

import (
	"github.com/spf13/cobra"

	"etwtap/internal/session"
)

func newReplayCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file.etl>",
		Short: "Replay a recorded trace file",
		Long: `Replay reads a recorded .etl file once from start to end. Replay never drops
events: a slow consumer slows the reader down instead.`,
		Example: `  etwtap replay boot.etl --json
  etwtap replay boot.etl -o boot.db --quiet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []session.Option{session.WithBackend(a.backend)}
			if a.isSet("capacity") {
				opts = append(opts, session.WithChannelCapacity(a.v.GetInt("capacity")))
			}
			r, err := session.NewFileReader(args[0], opts...)
			if err != nil {
				return err
			}
			return a.replay(cmd.Context(), r)
		},
	}
	cmd.Flags().Int("capacity", 0, "Replay channel capacity")
	addRunFlags(cmd)
	return cmd
}
