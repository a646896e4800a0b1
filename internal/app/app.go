// Package app is the top-level controller: it owns the navigation history,
// the auth prompt with its pending intent, and runs every visit through the
// route guards. The session store is injected, never global.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adrenalink/adrenalink/internal/cli/client"
	"github.com/adrenalink/adrenalink/internal/guard"
	"github.com/adrenalink/adrenalink/internal/router"
	"github.com/adrenalink/adrenalink/internal/session"
)

// DefaultLandingPath is where a successful login goes without an intent
const DefaultLandingPath = "/adrenaid"

// maxRedirects bounds alias chains in the route table
const maxRedirects = 5

// ErrRouteNotFound is returned when visiting a path outside the route table
var ErrRouteNotFound = router.ErrNotFound

// AuthAPI is the part of the REST API the auth handlers call
type AuthAPI interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error)
	Signup(ctx context.Context, req client.SignupRequest) (*client.AuthResponse, error)
}

// UserStore persists the user record for optimistic display
type UserStore interface {
	SaveUser(user client.User) error
	ClearUser() error
}

// View is one guard evaluation of a visited route
type View struct {
	// Path is where the app ended up: the visited path, or home after a denial
	Path     string
	Match    router.Match
	Decision guard.Decision
	State    session.State
	// Redirected is set when the history entry was replaced
	Redirected bool
	// PromptSignIn marks a personalized page seen while logged out
	PromptSignIn bool
}

// Controller ties the session store, the route table and the auth prompt together
type Controller struct {
	store   *session.Store
	api     AuthAPI
	users   UserStore
	routes  *router.Router
	history *router.History
	logger  zerolog.Logger

	mu         sync.Mutex
	promptOpen bool
	intent     string
	onRender   func(View)
}

// Option configures a Controller
type Option func(*Controller)

// WithRenderHook calls fn for every guard evaluation, in order
func WithRenderHook(fn func(View)) Option {
	return func(c *Controller) {
		c.onRender = fn
	}
}

// WithRouter replaces the built-in route table
func WithRouter(r *router.Router) Option {
	return func(c *Controller) {
		c.routes = r
	}
}

// New creates a controller. history must be the navigator the store was
// built with so logout lands in the same stack.
func New(store *session.Store, api AuthAPI, users UserStore, history *router.History, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		api:     api,
		users:   users,
		routes:  router.Default(),
		history: history,
		logger:  logger.With().Str("component", "app").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session snapshot
func (c *Controller) Session() session.State {
	return c.store.State()
}

// History returns the navigation history
func (c *Controller) History() *router.History {
	return c.history
}

// Routes returns the route table
func (c *Controller) Routes() *router.Router {
	return c.routes
}

// Visit navigates to path and evaluates its guard once against the current
// state. A denied route is replaced by home.
func (c *Controller) Visit(path string) (View, error) {
	m, err := c.resolve(path)
	if err != nil {
		return View{}, err
	}
	c.history.Push(m.Path)
	return c.evaluate(m), nil
}

// Open is a page load: it visits path, then starts bootstrap, so the first
// evaluation always sees the store as it was before verification began.
// While the guard says LOADING it waits for bootstrap to finish and
// evaluates again. The returned view is final.
func (c *Controller) Open(ctx context.Context, path string) (View, error) {
	view, err := c.Visit(path)
	if err != nil {
		return View{}, err
	}
	c.store.Start(ctx)

	if view.Decision != guard.Loading {
		return view, nil
	}

	if err := c.store.Wait(ctx); err != nil {
		return view, fmt.Errorf("waiting for session: %w", err)
	}
	return c.evaluate(view.Match), nil
}

func (c *Controller) resolve(path string) (router.Match, error) {
	m, err := c.routes.Match(path)
	if err != nil {
		return router.Match{}, err
	}

	for hops := 0; m.Route.IsRedirect(); hops++ {
		if hops == maxRedirects {
			return router.Match{}, fmt.Errorf("too many redirects from %s", path)
		}
		target := m.RedirectPath()
		c.logger.Debug().Str("from", m.Path).Str("to", target).Msg("Following route alias")
		m, err = c.routes.Match(target)
		if err != nil {
			return router.Match{}, err
		}
	}
	return m, nil
}

func (c *Controller) evaluate(m router.Match) View {
	st := c.store.State()
	decision := guard.Evaluate(st, m.Route.Requirement())

	view := View{
		Path:     m.Path,
		Match:    m,
		Decision: decision,
		State:    st,
	}

	switch decision {
	case guard.Denied:
		c.logger.Debug().Str("path", m.Path).Str("requirement", m.Route.Requirement().String()).Msg("Route denied")
		c.history.Replace(session.HomePath)
		view.Path = session.HomePath
		view.Redirected = true
	case guard.Allowed:
		view.PromptSignIn = m.Route.Personalized && !st.LoggedIn
	}

	c.mu.Lock()
	hook := c.onRender
	c.mu.Unlock()
	if hook != nil {
		hook(view)
	}
	return view
}

// Logout ends the session and forgets the stored user record
func (c *Controller) Logout(ctx context.Context) {
	c.store.Logout(ctx)
	if err := c.users.ClearUser(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear stored user")
	}
}

// IsNotFound reports whether err means the path is not a route
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRouteNotFound)
}
