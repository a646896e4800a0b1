package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrenalink/adrenalink/internal/cli/client"
)

// fakeBackend answers check-auth with a canned response, optionally after
// the test releases it
type fakeBackend struct {
	resp      *client.CheckAuthResponse
	err       error
	logoutErr error
	gate      chan struct{}

	checkCalls  atomic.Int32
	logoutCalls atomic.Int32
}

func (f *fakeBackend) CheckAuth(ctx context.Context) (*client.CheckAuthResponse, error) {
	f.checkCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

// memoryHints is an in-memory HintStore
type memoryHints struct {
	mu   sync.Mutex
	role string
}

func (m *memoryHints) LoadRole() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role, nil
}

func (m *memoryHints) SaveRole(role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = role
	return nil
}

func (m *memoryHints) ClearRole() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = ""
	return nil
}

func (m *memoryHints) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// recordingNav records every navigation
type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingNav) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

// recorder collects every state the store publishes
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func loggedIn(role string) *client.CheckAuthResponse {
	return &client.CheckAuthResponse{LoggedIn: true, User: &client.User{Role: role}}
}

func TestInitialState(t *testing.T) {
	store := NewStore(&fakeBackend{}, &memoryHints{}, nil, zerolog.Nop())

	st := store.State()
	assert.Equal(t, State{LoggedIn: false, Role: "", Bootstrapping: true}, st)
	assert.Equal(t, PhaseBootstrapping, st.Phase())
}

func TestBootstrap_NoHintLoggedOut(t *testing.T) {
	// Scenario A
	backend := &fakeBackend{resp: &client.CheckAuthResponse{LoggedIn: false}}
	hints := &memoryHints{}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	store.Bootstrap(context.Background())

	assert.Equal(t, State{LoggedIn: false, Role: "", Bootstrapping: false}, store.State())
	assert.Empty(t, hints.get(), "no hint written")
	assert.Equal(t, int32(1), backend.checkCalls.Load())
}

func TestBootstrap_HintConfirmed(t *testing.T) {
	// Scenario B
	backend := &fakeBackend{resp: loggedIn("admin"), gate: make(chan struct{})}
	hints := &memoryHints{role: "admin"}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	rec := &recorder{}
	store.Subscribe(rec.observe)

	store.Start(context.Background())

	// The optimistic seed is visible before the backend answers
	require.Eventually(t, func() bool {
		return store.State().LoggedIn
	}, time.Second, time.Millisecond)
	assert.Equal(t, State{LoggedIn: true, Role: RoleAdmin, Bootstrapping: true}, store.State())

	close(backend.gate)
	require.NoError(t, store.Wait(context.Background()))

	assert.Equal(t, State{LoggedIn: true, Role: RoleAdmin, Bootstrapping: false}, store.State())
	assert.Equal(t, "admin", hints.get())
	assert.Equal(t, []State{
		{LoggedIn: true, Role: RoleAdmin, Bootstrapping: true},
		{LoggedIn: true, Role: RoleAdmin, Bootstrapping: false},
	}, rec.all())
}

func TestBootstrap_TimeoutFailsOpen(t *testing.T) {
	// Scenario C
	backend := &fakeBackend{err: &client.NetworkError{Method: "GET", URL: "/api/check-auth", Err: context.DeadlineExceeded}}
	hints := &memoryHints{role: "client"}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	store.Bootstrap(context.Background())

	assert.Equal(t, State{LoggedIn: true, Role: RoleClient, Bootstrapping: false}, store.State())
	assert.Equal(t, "client", hints.get(), "hint kept on failure")
}

func TestBootstrap_MalformedResponseFailsOpen(t *testing.T) {
	backend := &fakeBackend{err: client.ErrMalformedResponse}
	hints := &memoryHints{role: "client"}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	store.Bootstrap(context.Background())

	assert.Equal(t, State{LoggedIn: true, Role: RoleClient, Bootstrapping: false}, store.State())
	assert.Equal(t, "client", hints.get(), "hint kept on parse failure")
}

func TestBootstrap_UnparseableCheckAuthKeepsHint(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"truncated json", "application/json", `{"logged_in": tr`},
		{"html page", "text/html", "<html><body>maintenance</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			hints := &memoryHints{role: "admin"}
			store := NewStore(client.New(server.URL), hints, nil, zerolog.Nop())

			store.Bootstrap(context.Background())

			assert.Equal(t, State{LoggedIn: true, Role: RoleAdmin, Bootstrapping: false}, store.State())
			assert.Equal(t, "admin", hints.get())
		})
	}
}

func TestBootstrap_BackendOverridesHint(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		resp     *client.CheckAuthResponse
		want     State
		wantHint string
	}{
		{
			name:     "stale hint, logged out",
			hint:     "admin",
			resp:     &client.CheckAuthResponse{LoggedIn: false},
			want:     State{LoggedIn: false, Role: "", Bootstrapping: false},
			wantHint: "",
		},
		{
			name:     "hint says client, backend says admin",
			hint:     "client",
			resp:     loggedIn("admin"),
			want:     State{LoggedIn: true, Role: RoleAdmin, Bootstrapping: false},
			wantHint: "admin",
		},
		{
			name:     "no hint, cookie still valid",
			hint:     "",
			resp:     &client.CheckAuthResponse{LoggedIn: true, UserRole: "client"},
			want:     State{LoggedIn: true, Role: RoleClient, Bootstrapping: false},
			wantHint: "client",
		},
		{
			name:     "logged in without role clears hint",
			hint:     "client",
			resp:     &client.CheckAuthResponse{LoggedIn: true},
			want:     State{LoggedIn: true, Role: "", Bootstrapping: false},
			wantHint: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := &memoryHints{role: tt.hint}
			store := NewStore(&fakeBackend{resp: tt.resp}, hints, nil, zerolog.Nop())

			store.Bootstrap(context.Background())

			assert.Equal(t, tt.want, store.State())
			assert.Equal(t, tt.wantHint, hints.get())
		})
	}
}

func TestBootstrap_SingleVerificationCall(t *testing.T) {
	backend := &fakeBackend{resp: &client.CheckAuthResponse{LoggedIn: false}}
	store := NewStore(backend, &memoryHints{}, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Bootstrap(context.Background())
		}()
	}
	wg.Wait()
	store.Bootstrap(context.Background())

	assert.Equal(t, int32(1), backend.checkCalls.Load())
}

func TestBootstrap_CloseDiscardsResult(t *testing.T) {
	backend := &fakeBackend{resp: loggedIn("admin"), gate: make(chan struct{})}
	hints := &memoryHints{}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		store.Bootstrap(context.Background())
		close(finished)
	}()

	require.Eventually(t, func() bool {
		return backend.checkCalls.Load() == 1
	}, time.Second, time.Millisecond)

	store.Close()
	<-finished

	assert.Equal(t, InitialState(), store.State(), "nothing applied after close")
	assert.Empty(t, hints.get())
	assert.ErrorIs(t, store.Wait(context.Background()), ErrClosed)

	select {
	case <-store.Ready():
		t.Fatal("ready must not close after teardown")
	default:
	}
}

func TestBootstrap_StaleResultAfterLogin(t *testing.T) {
	backend := &fakeBackend{resp: &client.CheckAuthResponse{LoggedIn: false}, gate: make(chan struct{})}
	hints := &memoryHints{}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	store.Start(context.Background())
	require.Eventually(t, func() bool {
		return backend.checkCalls.Load() == 1
	}, time.Second, time.Millisecond)

	// The user logs in while the verification sent before it is in flight
	store.Login(client.User{Role: "client"})
	close(backend.gate)
	require.NoError(t, store.Wait(context.Background()))

	assert.Equal(t, State{LoggedIn: true, Role: RoleClient, Bootstrapping: false}, store.State())
	assert.Equal(t, "client", hints.get())
}

func TestLogin(t *testing.T) {
	hints := &memoryHints{}
	backend := &fakeBackend{}
	store := NewStore(backend, hints, nil, zerolog.Nop())

	store.Login(client.User{Username: "rider", Role: "admin"})

	st := store.State()
	assert.True(t, st.LoggedIn)
	assert.Equal(t, RoleAdmin, st.Role)
	assert.True(t, st.Bootstrapping, "login does not end bootstrapping")
	assert.Equal(t, "admin", hints.get())
	assert.Equal(t, int32(0), backend.checkCalls.Load(), "login does not call the backend")
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name      string
		logoutErr error
	}{
		{name: "backend acknowledges"},
		{name: "backend unreachable", logoutErr: &client.NetworkError{Method: "POST", URL: "/api/logout", Err: errors.New("connection refused")}},
		{name: "backend times out", logoutErr: &client.NetworkError{Method: "POST", URL: "/api/logout", Err: context.DeadlineExceeded}},
		{name: "backend rejects", logoutErr: &client.HTTPError{StatusCode: 500, Message: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{resp: loggedIn("admin"), logoutErr: tt.logoutErr}
			hints := &memoryHints{role: "admin"}
			nav := &recordingNav{}
			store := NewStore(backend, hints, nav, zerolog.Nop())
			store.Bootstrap(context.Background())

			store.Logout(context.Background())

			assert.Equal(t, State{LoggedIn: false, Role: "", Bootstrapping: false}, store.State())
			assert.Empty(t, hints.get())
			assert.Equal(t, []string{HomePath}, nav.paths)
			assert.Equal(t, int32(1), backend.logoutCalls.Load())
		})
	}
}

func TestRoleInvariantHoldsForEveryPublishedState(t *testing.T) {
	backend := &fakeBackend{resp: &client.CheckAuthResponse{LoggedIn: false}}
	hints := &memoryHints{role: "admin"}
	store := NewStore(backend, hints, &recordingNav{}, zerolog.Nop())

	rec := &recorder{}
	store.Subscribe(rec.observe)

	store.Bootstrap(context.Background())
	store.Login(client.User{Role: "client"})
	store.Logout(context.Background())
	store.Login(client.User{Role: ""})
	store.Login(client.User{Role: "admin"})
	store.Logout(context.Background())

	states := rec.all()
	require.NotEmpty(t, states)
	for i, st := range states {
		assert.True(t, st.Consistent(), "state %d violates role invariant: %+v", i, st)
	}
}

func TestBootstrappingEndsExactlyOnce(t *testing.T) {
	backend := &fakeBackend{resp: loggedIn("client")}
	store := NewStore(backend, &memoryHints{}, &recordingNav{}, zerolog.Nop())

	rec := &recorder{}
	store.Subscribe(rec.observe)

	store.Bootstrap(context.Background())
	store.Logout(context.Background())
	store.Login(client.User{Role: "client"})
	store.Bootstrap(context.Background())

	transitions := 0
	prev := InitialState()
	for _, st := range rec.all() {
		if prev.Bootstrapping && !st.Bootstrapping {
			transitions++
		}
		assert.False(t, !prev.Bootstrapping && st.Bootstrapping, "bootstrapping came back")
		prev = st
	}
	assert.Equal(t, 1, transitions)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	store := NewStore(&fakeBackend{}, &memoryHints{}, nil, zerolog.Nop())

	var calls int
	unsubscribe := store.Subscribe(func(State) { calls++ })

	store.Login(client.User{Role: "client"})
	unsubscribe()
	store.Login(client.User{Role: "admin"})

	assert.Equal(t, 1, calls)
}

func TestWait_ContextCancelled(t *testing.T) {
	store := NewStore(&fakeBackend{}, &memoryHints{}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Wait(ctx), context.Canceled)
}
