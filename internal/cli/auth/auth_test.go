package auth

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testServer = "http://127.0.0.1:5000"

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	cookies, err := LoadCookies(testServer)
	require.NoError(t, err)
	assert.Empty(t, cookies, "no session before login")

	require.NoError(t, SaveCookies(testServer, []*http.Cookie{{Name: "session", Value: "abc"}}))

	cookies, err = LoadCookies(testServer)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)

	require.NoError(t, DeleteCookies(testServer))
	require.NoError(t, DeleteCookies(testServer), "deleting twice is fine")

	cookies, err = LoadCookies(testServer)
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

// memoryCookieStore is a simple in-memory cookie store for testing
type memoryCookieStore struct {
	saved   map[string][]*http.Cookie
	loadErr error
	deletes int
}

func newMemoryCookieStore() *memoryCookieStore {
	return &memoryCookieStore{saved: make(map[string][]*http.Cookie)}
}

func (m *memoryCookieStore) SaveCookies(serverURL string, cookies []*http.Cookie) error {
	m.saved[serverURL] = cookies
	return nil
}

func (m *memoryCookieStore) LoadCookies(serverURL string) ([]*http.Cookie, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved[serverURL], nil
}

func (m *memoryCookieStore) DeleteCookies(serverURL string) error {
	m.deletes++
	delete(m.saved, serverURL)
	return nil
}

func TestPersistentJar_SeedsFromStore(t *testing.T) {
	store := newMemoryCookieStore()
	store.saved[testServer] = []*http.Cookie{{Name: "session", Value: "seeded", Path: "/"}}

	jar, err := NewPersistentJar(testServer, store, zerolog.Nop())
	require.NoError(t, err)

	u, _ := url.Parse(testServer + "/api/check-auth")
	cookies := jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "seeded", cookies[0].Value)
}

func TestPersistentJar_WritesThrough(t *testing.T) {
	store := newMemoryCookieStore()
	jar, err := NewPersistentJar(testServer, store, zerolog.Nop())
	require.NoError(t, err)

	u, _ := url.Parse(testServer + "/api/login")
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "fresh", Path: "/"}})

	require.Len(t, store.saved[testServer], 1)
	assert.Equal(t, "fresh", store.saved[testServer][0].Value)

	// The backend clears the cookie on logout
	logout, _ := url.Parse(testServer + "/api/logout")
	jar.SetCookies(logout, []*http.Cookie{{Name: "session", Value: "", Path: "/", MaxAge: -1}})

	assert.Empty(t, store.saved[testServer])
	assert.Equal(t, 1, store.deletes)
}

func TestPersistentJar_IgnoresOtherHosts(t *testing.T) {
	store := newMemoryCookieStore()
	jar, err := NewPersistentJar(testServer, store, zerolog.Nop())
	require.NoError(t, err)

	other, _ := url.Parse("http://tiles.example.com/")
	jar.SetCookies(other, []*http.Cookie{{Name: "tracking", Value: "x"}})

	assert.Empty(t, store.saved)
	assert.Len(t, jar.Cookies(other), 1)
}

func TestPersistentJar_Clear(t *testing.T) {
	store := newMemoryCookieStore()
	store.saved[testServer] = []*http.Cookie{{Name: "session", Value: "seeded", Path: "/"}}

	jar, err := NewPersistentJar(testServer, store, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, jar.Clear())

	u, _ := url.Parse(testServer)
	assert.Empty(t, jar.Cookies(u))
	assert.Empty(t, store.saved)
}

func TestPersistentJar_BrokenStoreStartsEmpty(t *testing.T) {
	store := newMemoryCookieStore()
	store.loadErr = errors.New("keyring locked")

	jar, err := NewPersistentJar(testServer, store, zerolog.Nop())
	require.NoError(t, err)

	u, _ := url.Parse(testServer)
	assert.Empty(t, jar.Cookies(u))
}

func TestPersistentJar_InvalidURL(t *testing.T) {
	_, err := NewPersistentJar("localhost", newMemoryCookieStore(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme and host are required")
}
