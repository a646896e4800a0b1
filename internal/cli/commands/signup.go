package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adrenalink/adrenalink/internal/app"
)

// NewSignupCmd creates the signup command
func NewSignupCmd(g *Globals) *cobra.Command {
	var fields app.SignupFields
	var next string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an Adrenalink account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignup(cmd, g, fields, next)
		},
	}

	cmd.Flags().StringVar(&fields.Username, "username", "", "Username")
	cmd.Flags().StringVar(&fields.FullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&fields.Email, "email", "", "Email address (or set ADRENALINK_EMAIL)")
	cmd.Flags().StringVar(&fields.Password, "password", "", "Password (or set ADRENALINK_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&next, "next", "", "Page to open after signing up (default /adrenaid)")

	return cmd
}

func runSignup(cmd *cobra.Command, g *Globals, fields app.SignupFields, next string) error {
	if fields.Email == "" {
		fields.Email = os.Getenv("ADRENALINK_EMAIL")
	}
	if fields.Password == "" {
		fields.Password = os.Getenv("ADRENALINK_PASSWORD")
	}

	password, err := promptPassword(cmd, fields.Password)
	if err != nil {
		return err
	}
	fields.Password = password

	rt, err := newRuntime(cmd, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := openPrompt(rt, next); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Creating account on %s...\n", rt.cfg.Backend.URL)

	user, err := rt.app.Signup(cmd.Context(), fields)
	if err != nil {
		return authCommandError("signup", err)
	}

	fmt.Fprintln(out, "✓ Account created!")
	printAuthenticated(out, user, rt.history.Current())
	return nil
}
