package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adrenalink/adrenalink/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	g := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "adrenalink",
		Short: "Adrenalink - adventure sports spots from the terminal",
		Long: `Adrenalink CLI - browse Adrenalink with the same session and access rules
as the web app.

Sign in once with 'adrenalink login'; the session is kept in your OS keyring
and verified against the backend every time a page is opened.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.ServerURL, "server", "", "Backend URL (overrides ADRENALINK_BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVar(&g.Debug, "debug", false, "Log requests and session changes to stderr")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adrenalink version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(g))
	rootCmd.AddCommand(commands.NewSignupCmd(g))
	rootCmd.AddCommand(commands.NewLogoutCmd(g))
	rootCmd.AddCommand(commands.NewStatusCmd(g))
	rootCmd.AddCommand(commands.NewOpenCmd(g))
	rootCmd.AddCommand(commands.NewRoutesCmd())

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
