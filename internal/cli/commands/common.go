package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adrenalink/adrenalink/internal/app"
	"github.com/adrenalink/adrenalink/internal/cli/auth"
	"github.com/adrenalink/adrenalink/internal/cli/client"
	"github.com/adrenalink/adrenalink/internal/cli/userconfig"
	"github.com/adrenalink/adrenalink/internal/config"
	"github.com/adrenalink/adrenalink/internal/logger"
	"github.com/adrenalink/adrenalink/internal/router"
	"github.com/adrenalink/adrenalink/internal/session"
)

// Globals holds the persistent flags of the root command
type Globals struct {
	ServerURL string
	Debug     bool
}

// runtime is everything one command invocation needs: the client with the
// persisted session cookie, the session store and the app controller
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	jar     *auth.PersistentJar
	api     *client.Client
	users   *userconfig.Store
	history *router.History
	store   *session.Store
	app     *app.Controller
}

// newRuntime loads the config and wires the app.
// Callers must Close the runtime.
func newRuntime(cmd *cobra.Command, g *Globals, opts ...app.Option) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g != nil && g.ServerURL != "" {
		cfg.Backend.URL = config.NormalizeBaseURL(g.ServerURL)
	}

	level := cfg.Logging.Level
	if g != nil && g.Debug {
		level = "debug"
	}
	log := logger.InitWithWriter(cmd.ErrOrStderr(), level, cfg.Logging.Format)

	jar, err := auth.NewPersistentJar(cfg.Backend.URL, auth.Default, log)
	if err != nil {
		return nil, err
	}

	api := client.New(cfg.Backend.URL,
		client.WithTimeout(cfg.Backend.Timeout),
		client.WithCookieJar(jar),
		client.WithLogger(log),
	)

	users, err := userconfig.DefaultStore()
	if err != nil {
		return nil, fmt.Errorf("failed to locate user config: %w", err)
	}

	history := router.NewHistory(session.HomePath)
	store := session.NewStore(api, users, history, log)

	return &runtime{
		cfg:     cfg,
		logger:  log,
		jar:     jar,
		api:     api,
		users:   users,
		history: history,
		store:   store,
		app:     app.New(store, api, users, history, log, opts...),
	}, nil
}

// Close tears the session store down
func (r *runtime) Close() {
	r.store.Close()
}
