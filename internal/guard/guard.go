// Package guard decides whether a route may render for a session state.
// Decisions are pure functions of (state, requirement); nothing here
// renders, navigates or mutates the session.
package guard

import (
	"fmt"

	"github.com/adrenalink/adrenalink/internal/session"
)

// Decision is the outcome of evaluating a guard
type Decision int

const (
	// Loading: identity is not known yet, show a neutral placeholder only
	Loading Decision = iota
	// Allowed: render the guarded content
	Allowed
	// Denied: replace the current route with home
	Denied
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "LOADING"
	case Allowed:
		return "ALLOWED"
	case Denied:
		return "DENIED"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Policy names how a route depends on identity
type Policy string

const (
	// PolicyPublic routes never wait for bootstrap, even when they show
	// optional logged-in extras
	PolicyPublic Policy = "public"
	// PolicyLogin routes need any logged-in user
	PolicyLogin Policy = "login"
	// PolicyRole routes need a specific role
	PolicyRole Policy = "role"
)

// Valid reports whether p is a known policy
func (p Policy) Valid() bool {
	switch p {
	case PolicyPublic, PolicyLogin, PolicyRole:
		return true
	}
	return false
}

// Requirement is what a route demands of the session
type Requirement struct {
	Policy Policy
	Role   session.Role
}

// Public returns a requirement that is always met
func Public() Requirement {
	return Requirement{Policy: PolicyPublic}
}

// RequireLogin returns a requirement for any logged-in user
func RequireLogin() Requirement {
	return Requirement{Policy: PolicyLogin}
}

// RequireRole returns a requirement for a specific role
func RequireRole(role session.Role) Requirement {
	return Requirement{Policy: PolicyRole, Role: role}
}

func (r Requirement) String() string {
	if r.Policy == PolicyRole {
		return fmt.Sprintf("role:%s", r.Role)
	}
	return string(r.Policy)
}

// Evaluate decides what a route with requirement req renders in state st
func Evaluate(st session.State, req Requirement) Decision {
	switch req.Policy {
	case PolicyPublic:
		return Allowed
	case PolicyLogin:
		if st.Bootstrapping {
			return Loading
		}
		if !st.LoggedIn {
			return Denied
		}
		return Allowed
	case PolicyRole:
		if st.Bootstrapping {
			return Loading
		}
		if st.Role != req.Role {
			return Denied
		}
		return Allowed
	default:
		// Unknown policies fail closed
		if st.Bootstrapping {
			return Loading
		}
		return Denied
	}
}
