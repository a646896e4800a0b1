// Package session owns the client-side authentication state for one run of
// the app: an optimistic guess seeded from the persisted role hint, then
// reconciled once against the backend.
package session

// Role is the user's role as reported by the backend. The empty role means
// logged out or unknown.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Phase is the two-phase bootstrap machine: bootstrapping until the first
// verification round-trip ends, resolved forever after.
type Phase int

const (
	PhaseBootstrapping Phase = iota
	PhaseResolved
)

func (p Phase) String() string {
	if p == PhaseBootstrapping {
		return "bootstrapping"
	}
	return "resolved"
}

// State is a snapshot of the session
type State struct {
	LoggedIn      bool
	Role          Role
	Bootstrapping bool
}

// InitialState is the state at process start
func InitialState() State {
	return State{Bootstrapping: true}
}

// Phase reports where the bootstrap machine is
func (s State) Phase() Phase {
	if s.Bootstrapping {
		return PhaseBootstrapping
	}
	return PhaseResolved
}

// Consistent reports whether the role invariant holds: a role implies logged in
func (s State) Consistent() bool {
	return s.Role == "" || s.LoggedIn
}
