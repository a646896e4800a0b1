package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adrenalink/adrenalink/internal/cli/client"
)

// HomePath is where logout lands
const HomePath = "/"

// ErrClosed is returned by Wait once the store has been torn down
var ErrClosed = errors.New("session store closed")

// Backend is the part of the REST API the store talks to
type Backend interface {
	CheckAuth(ctx context.Context) (*client.CheckAuthResponse, error)
	Logout(ctx context.Context) error
}

// HintStore persists the non-authoritative role hint
type HintStore interface {
	LoadRole() (string, error)
	SaveRole(role string) error
	ClearRole() error
}

// Navigator moves the app to another route
type Navigator interface {
	Navigate(path string)
}

// Store holds the session state and is its only writer. State changes only
// through Bootstrap, Login and Logout; everybody else reads snapshots.
type Store struct {
	backend Backend
	hints   HintStore
	nav     Navigator
	logger  zerolog.Logger

	once  sync.Once
	ready chan struct{}
	done  chan struct{}

	mu           sync.Mutex
	state        State
	generation   uint64
	closed       bool
	cancelVerify context.CancelFunc
	listeners    map[int]func(State)
	nextListener int
}

// NewStore creates a store in the initial bootstrapping state. nav may be nil.
func NewStore(backend Backend, hints HintStore, nav Navigator, logger zerolog.Logger) *Store {
	return &Store{
		backend:   backend,
		hints:     hints,
		nav:       nav,
		logger:    logger.With().Str("component", "session").Logger(),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		state:     InitialState(),
		listeners: make(map[int]func(State)),
	}
}

// State returns the current snapshot
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed when bootstrapping has finished
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed by Close
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until bootstrapping has finished, the store is closed, or ctx ends
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to be called after every state change, in order.
// fn runs while the store is locked and must not call back into the store.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Start runs Bootstrap in the background
func (s *Store) Start(ctx context.Context) {
	go s.Bootstrap(ctx)
}

// Bootstrap seeds the state from the role hint and verifies it with the
// backend. It sends at most one verification request per store no matter
// how often it is called, and it never fails: on a network or decode error
// the optimistic guess stays in place.
func (s *Store) Bootstrap(ctx context.Context) {
	s.once.Do(func() {
		s.bootstrap(ctx)
	})
}

func (s *Store) bootstrap(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelVerify = cancel
	generation := s.generation

	hint, err := s.hints.LoadRole()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read role hint")
		hint = ""
	}
	if hint != "" {
		s.logger.Debug().Str("role", hint).Msg("Seeding session from role hint")
		s.state.LoggedIn = true
		s.state.Role = Role(hint)
		s.notifyLocked()
	}
	s.mu.Unlock()

	resp, err := s.backend.CheckAuth(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug().Msg("Discarding verification result after close")
		return
	}
	s.cancelVerify = nil

	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msg("Session verification failed, keeping last known state")
	case s.generation != generation:
		s.logger.Debug().Msg("Discarding verification result superseded by login or logout")
	case resp.LoggedIn:
		role := Role(resp.Role())
		s.state.LoggedIn = true
		s.state.Role = role
		if role != "" {
			s.saveHintLocked(role)
		} else {
			s.clearHintLocked()
		}
	default:
		s.state.LoggedIn = false
		s.state.Role = ""
		s.clearHintLocked()
	}

	s.state.Bootstrapping = false
	close(s.ready)
	s.notifyLocked()
}

// Login records an interactive login the backend already confirmed. It
// does not call the backend.
func (s *Store) Login(user client.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	role := Role(user.Role)
	s.state.LoggedIn = true
	s.state.Role = role
	if role != "" {
		s.saveHintLocked(role)
	} else {
		s.clearHintLocked()
	}
	s.notifyLocked()
}

// Logout ends the backend session and always clears the local one. The
// backend result is ignored: a failed request must not leave the app
// looking logged in.
func (s *Store) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Ignoring logout request failure")
	}

	s.mu.Lock()
	s.generation++
	s.state.LoggedIn = false
	s.state.Role = ""
	s.clearHintLocked()
	s.notifyLocked()
	s.mu.Unlock()

	if s.nav != nil {
		s.nav.Navigate(HomePath)
	}
}

// Close tears the store down. An in-flight verification is cancelled and
// its result discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.cancelVerify != nil {
		s.cancelVerify()
		s.cancelVerify = nil
	}
	close(s.done)
}

func (s *Store) saveHintLocked(role Role) {
	if err := s.hints.SaveRole(string(role)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to save role hint")
	}
}

func (s *Store) clearHintLocked() {
	if err := s.hints.ClearRole(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear role hint")
	}
}

func (s *Store) notifyLocked() {
	snapshot := s.state
	for _, fn := range s.listeners {
		fn(snapshot)
	}
}
