package router

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adrenalink/adrenalink/internal/guard"
	"github.com/adrenalink/adrenalink/internal/session"
)

//go:embed routes.yaml
var defaultRoutes []byte

// ErrNotFound is returned when no route matches a path
var ErrNotFound = errors.New("route not found")

// Route is one entry of the route table
type Route struct {
	Path         string       `yaml:"path"`
	Name         string       `yaml:"name"`
	Policy       guard.Policy `yaml:"policy"`
	Role         session.Role `yaml:"role"`
	Personalized bool         `yaml:"personalized"`
	API          string       `yaml:"api"`
	Redirect     string       `yaml:"redirect"`

	segments []string
}

// Requirement returns the guard requirement of the route
func (r *Route) Requirement() guard.Requirement {
	switch r.Policy {
	case guard.PolicyLogin:
		return guard.RequireLogin()
	case guard.PolicyRole:
		return guard.RequireRole(r.Role)
	default:
		return guard.Public()
	}
}

// IsRedirect reports whether the route is an alias for another path
func (r *Route) IsRedirect() bool {
	return r.Redirect != ""
}

// Match is a route resolved against a concrete path
type Match struct {
	Route  *Route
	Path   string
	Params map[string]string
}

// APIPath returns the route's REST resource with params substituted
func (m Match) APIPath() string {
	if m.Route.API == "" {
		return ""
	}
	return expand(m.Route.API, m.Params)
}

// RedirectPath returns the redirect target with params substituted
func (m Match) RedirectPath() string {
	return expand(m.Route.Redirect, m.Params)
}

// Router matches paths against a route table
type Router struct {
	routes []*Route
}

type routeFile struct {
	Routes []*Route `yaml:"routes"`
}

// Default returns the router for the built-in route table
func Default() *Router {
	r, err := Parse(defaultRoutes)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in route table: %v", err))
	}
	return r
}

// Parse builds a router from a YAML route table
func Parse(data []byte) (*Router, error) {
	var file routeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("route table has no routes")
	}

	seen := make(map[string]bool, len(file.Routes))
	for _, route := range file.Routes {
		if err := validate(route); err != nil {
			return nil, err
		}
		if seen[route.Path] {
			return nil, fmt.Errorf("duplicate route %q", route.Path)
		}
		seen[route.Path] = true
		route.segments = split(route.Path)
	}

	return &Router{routes: file.Routes}, nil
}

func validate(route *Route) error {
	if !strings.HasPrefix(route.Path, "/") {
		return fmt.Errorf("route %q: path must start with /", route.Path)
	}
	if route.IsRedirect() {
		if route.Policy != "" || route.API != "" {
			return fmt.Errorf("route %q: a redirect has no policy or api", route.Path)
		}
		return nil
	}
	if !route.Policy.Valid() {
		return fmt.Errorf("route %q: unknown policy %q", route.Path, route.Policy)
	}
	if route.Policy == guard.PolicyRole && route.Role == "" {
		return fmt.Errorf("route %q: policy role needs a role", route.Path)
	}
	if route.Policy != guard.PolicyRole && route.Role != "" {
		return fmt.Errorf("route %q: role is only valid with policy role", route.Path)
	}
	if route.Personalized && route.Policy != guard.PolicyPublic {
		return fmt.Errorf("route %q: only public routes can be personalized", route.Path)
	}
	return nil
}

// Routes returns the route table in declaration order
func (r *Router) Routes() []*Route {
	return r.routes
}

// Match resolves path. Query strings, fragments and trailing slashes are
// ignored. Static segments win over params when two routes match.
func (r *Router) Match(path string) (Match, error) {
	clean := Clean(path)
	segments := split(clean)

	var best *Route
	var bestParams map[string]string
	bestStatic := -1

	for _, route := range r.routes {
		params, static, ok := matchSegments(route.segments, segments)
		if !ok {
			continue
		}
		if static > bestStatic {
			best, bestParams, bestStatic = route, params, static
		}
	}

	if best == nil {
		return Match{}, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	return Match{Route: best, Path: clean, Params: bestParams}, nil
}

// Clean normalizes a path the way routes are matched
func Clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	return path
}

func matchSegments(pattern, segments []string) (map[string]string, int, bool) {
	if len(pattern) != len(segments) {
		return nil, 0, false
	}

	params := make(map[string]string)
	static := 0
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			value, err := url.PathUnescape(segments[i])
			if err != nil || value == "" {
				return nil, 0, false
			}
			params[p[1:]] = value
			continue
		}
		if p != segments[i] {
			return nil, 0, false
		}
		static++
	}
	return params, static, true
}

func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func expand(pattern string, params map[string]string) string {
	segments := strings.Split(pattern, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			segments[i] = url.PathEscape(params[s[1:]])
		}
	}
	return strings.Join(segments, "/")
}
