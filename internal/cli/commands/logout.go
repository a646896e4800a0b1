package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, g)
		},
	}
}

func runLogout(cmd *cobra.Command, g *Globals) error {
	rt, err := newRuntime(cmd, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Always succeeds locally, even when the backend is unreachable
	rt.app.Logout(cmd.Context())

	if err := rt.jar.Clear(); err != nil {
		rt.logger.Warn().Err(err).Msg("Failed to delete stored session cookie")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
	return nil
}
