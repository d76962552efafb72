package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"etwtap/internal/procinfo"
	"etwtap/internal/provider"
	"etwtap/internal/session"
)

func newProvidersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List known providers, profiles and kernel categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "PROVIDER\tGUID")
			for _, name := range provider.KnownNames() {
				fmt.Fprintf(w, "%s\t%s\n", name, provider.Known[name])
			}

			fmt.Fprintln(w, "\nPROFILE\tPROVIDERS\tKERNEL\tDESCRIPTION")
			for _, name := range provider.ProfileNames() {
				def, _ := provider.Profile(name)
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", def.Name, len(def.Providers),
					session.KernelCategory(def.KernelCategories), def.Description)
			}

			fmt.Fprintln(w, "\nKERNEL CATEGORY")
			for _, name := range session.CategoryNames() {
				fmt.Fprintln(w, name)
			}
			return w.Flush()
		},
	}
}

func newProcessesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "processes",
		Short: "List running processes as process-name filters see them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			procs, err := procinfo.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PID\tPPID\tNAME\tSERVICE")
			for _, p := range procs {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", p.PID, p.ParentPID, p.Name, p.Service)
			}
			return w.Flush()
		},
	}
}
