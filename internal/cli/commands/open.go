package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adrenalink/adrenalink/internal/app"
	"github.com/adrenalink/adrenalink/internal/guard"
)

// ErrAccessDenied is returned when a page's guard sends the user home
var ErrAccessDenied = errors.New("access denied")

// NewOpenCmd creates the open command
func NewOpenCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Open a page the way the web app would",
		Long: `Open a page of the web app: verify the session, run the page's guard and,
when access is allowed, fetch the data the page displays.

Examples:
  adrenalink open /category/7
  adrenalink open /adminpanel`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, g, args[0])
		},
	}
}

func runOpen(cmd *cobra.Command, g *Globals, path string) error {
	out := cmd.OutOrStdout()

	rt, err := newRuntime(cmd, g, app.WithRenderHook(func(v app.View) {
		if v.Decision == guard.Loading {
			fmt.Fprintln(out, "Authenticating…")
		}
	}))
	if err != nil {
		return err
	}
	defer rt.Close()

	view, err := rt.app.Open(cmd.Context(), path)
	if err != nil {
		if app.IsNotFound(err) {
			return fmt.Errorf("unknown page %s (run 'adrenalink routes' to list pages)", path)
		}
		return err
	}

	if view.Decision == guard.Denied {
		fmt.Fprintf(out, "✗ %s requires %s, redirected to %s\n",
			view.Match.Path, view.Match.Route.Requirement(), view.Path)
		return fmt.Errorf("%w: %s", ErrAccessDenied, view.Match.Path)
	}

	fmt.Fprintf(out, "✓ %s (%s)\n", view.Path, view.Match.Route.Name)
	if view.PromptSignIn {
		fmt.Fprintf(out, "  Sign in to see your favorites here: adrenalink login --next %s\n", view.Path)
	}

	apiPath := view.Match.APIPath()
	if apiPath == "" {
		return nil
	}

	var data json.RawMessage
	if err := rt.api.Get(cmd.Context(), apiPath, &data); err != nil {
		return fmt.Errorf("failed to load %s: %w", apiPath, err)
	}
	return printJSON(out, data)
}

func printJSON(out io.Writer, data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}
