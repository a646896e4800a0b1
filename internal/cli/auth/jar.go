package auth

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
)

// PersistentJar is an http.CookieJar whose cookies for one backend survive
// across CLI runs. Every SetCookies from that backend is written through to
// the CookieStore; an emptied jar deletes the stored entry.
type PersistentJar struct {
	mu        sync.Mutex
	jar       *cookiejar.Jar
	store     CookieStore
	serverURL string
	origin    *url.URL
	logger    zerolog.Logger
}

// NewPersistentJar creates a jar seeded with the cookies stored for serverURL
func NewPersistentJar(serverURL string, store CookieStore, logger zerolog.Logger) (*PersistentJar, error) {
	origin, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", serverURL, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", serverURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	cookies, err := store.LoadCookies(serverURL)
	if err != nil {
		// A broken keyring must not block the app; start without a session
		logger.Warn().Err(err).Str("server", serverURL).Msg("Ignoring stored session")
		cookies = nil
	}
	if len(cookies) > 0 {
		jar.SetCookies(origin, cookies)
	}

	return &PersistentJar{
		jar:       jar,
		store:     store,
		serverURL: serverURL,
		origin:    origin,
		logger:    logger,
	}, nil
}

// SetCookies implements http.CookieJar
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}
	j.persistLocked()
}

// Cookies implements http.CookieJar
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie for the backend, in memory and in the store
func (j *PersistentJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j.jar = jar
	return j.store.DeleteCookies(j.serverURL)
}

func (j *PersistentJar) persistLocked() {
	current := j.jar.Cookies(j.origin)
	var err error
	if len(current) == 0 {
		err = j.store.DeleteCookies(j.serverURL)
	} else {
		err = j.store.SaveCookies(j.serverURL, current)
	}
	if err != nil {
		j.logger.Warn().Err(err).Str("server", j.serverURL).Msg("Failed to persist session cookie")
	}
}
