package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/zalando/go-keyring"
)

const (
	service = "adrenalink-cli"
)

// storedCookie is the keyring representation of a session cookie
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// getKeyringKey returns a unique key for storing session cookies per backend
func getKeyringKey(serverURL string) string {
	return fmt.Sprintf("session-%s", serverURL)
}

// SaveCookies persists the backend session cookies in the OS keychain/credential manager
func SaveCookies(serverURL string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	key := getKeyringKey(serverURL)
	if err := keyring.Set(service, key, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadCookies retrieves the session cookies from the OS keychain/credential manager.
// A backend never logged into has no cookies and no error.
func LoadCookies(serverURL string) ([]*http.Cookie, error) {
	key := getKeyringKey(serverURL)
	data, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	return cookies, nil
}

// DeleteCookies removes the session cookies from the OS keychain/credential manager
func DeleteCookies(serverURL string) error {
	key := getKeyringKey(serverURL)
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
