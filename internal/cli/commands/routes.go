package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adrenalink/adrenalink/internal/router"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "routes",
		Aliases: []string{"pages"},
		Short:   "List the pages of the web app and who may open them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd, router.Default())
		},
	}
}

func runRoutes(cmd *cobra.Command, r *router.Router) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME\tACCESS\tDATA")
	fmt.Fprintln(w, "────\t────\t──────\t────")

	for _, route := range r.Routes() {
		access := route.Requirement().String()
		if route.IsRedirect() {
			access = "→ " + route.Redirect
		} else if route.Personalized {
			access += " (personalized)"
		}

		data := route.API
		if data == "" {
			data = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", route.Path, route.Name, access, data)
	}

	return w.Flush()
}
