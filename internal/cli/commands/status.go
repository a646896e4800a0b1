package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify the stored session with the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, g)
		},
	}
}

func runStatus(cmd *cobra.Command, g *Globals) error {
	rt, err := newRuntime(cmd, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.store.Bootstrap(cmd.Context())
	st := rt.store.State()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend: %s\n", rt.cfg.Backend.URL)

	if !st.LoggedIn {
		fmt.Fprintln(out, "Session: not logged in")
		fmt.Fprintln(out, "\nSign in with: adrenalink login")
		return nil
	}

	fmt.Fprintln(out, "Session: logged in")
	if st.Role != "" {
		fmt.Fprintf(out, "Role:    %s\n", st.Role)
	}

	user, err := rt.users.LoadUser()
	if err != nil {
		rt.logger.Warn().Err(err).Msg("Failed to read stored user")
		return nil
	}
	if user != nil {
		fmt.Fprintf(out, "User:    %s (%s)\n", user.Username, user.Email)
	}
	return nil
}
