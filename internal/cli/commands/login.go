package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adrenalink/adrenalink/internal/app"
	"github.com/adrenalink/adrenalink/internal/cli/client"
)

// NewLoginCmd creates the login command
func NewLoginCmd(g *Globals) *cobra.Command {
	var email, password, next string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Adrenalink",
		Long: `Sign in to Adrenalink and keep the session for later commands.

With --next the login lands on that page, the way the web app returns you to
the page that asked you to sign in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, g, email, password, next)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ADRENALINK_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ADRENALINK_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&next, "next", "", "Page to open after signing in (default /adrenaid)")

	return cmd
}

func runLogin(cmd *cobra.Command, g *Globals, email, password, next string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("ADRENALINK_EMAIL")
	}
	if password == "" {
		password = os.Getenv("ADRENALINK_PASSWORD")
	}

	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required (use --email flag or ADRENALINK_EMAIL env var)")
	}

	password, err := promptPassword(cmd, password)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := openPrompt(rt, next); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logging in to %s...\n", rt.cfg.Backend.URL)

	user, err := rt.app.Login(cmd.Context(), app.Credentials{Email: email, Password: password})
	if err != nil {
		return authCommandError("login", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	printAuthenticated(out, user, rt.history.Current())
	return nil
}

// promptPassword reads the password from the terminal when none was given
func promptPassword(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}

	// Check if stdin is a terminal (not piped)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or ADRENALINK_PASSWORD env var)")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	bytePassword, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout()) // New line after password input
	return string(bytePassword), nil
}

// openPrompt opens the auth prompt, remembering next when it is a known page
func openPrompt(rt *runtime, next string) error {
	if next == "" {
		rt.app.OpenAuth()
		return nil
	}
	if _, err := rt.app.Routes().Match(next); err != nil {
		return fmt.Errorf("invalid --next: %w", err)
	}
	rt.app.OpenAuthWithIntent(next)
	return nil
}

func authCommandError(action string, err error) error {
	if client.IsNetworkError(err) {
		return fmt.Errorf("%s failed: backend unreachable, try again: %w", action, err)
	}
	return fmt.Errorf("%s failed: %w", action, err)
}

func printAuthenticated(out io.Writer, user *client.User, landing string) {
	name := user.FullName
	if name == "" {
		name = user.Username
	}
	fmt.Fprintf(out, "  User: %s (%s)\n", name, user.Email)
	if user.Role != "" {
		fmt.Fprintf(out, "  Role: %s\n", user.Role)
	}
	fmt.Fprintf(out, "  Next: %s\n", landing)
}
