package testhelpers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner(t *testing.T) {
	signer := &tokenSigner{secret: []byte("test-secret")}

	token, err := signer.generateToken("user-1", "admin")
	require.NoError(t, err)

	claims, err := signer.validateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	other := &tokenSigner{secret: []byte("other-secret")}
	_, err = other.validateToken(token)
	assert.Error(t, err)
}

func TestBackend_CORSPreflightAllowsCredentials(t *testing.T) {
	b := NewBackend(t)

	req, err := http.NewRequest(http.MethodOptions, b.URL+"/api/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", SPAOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, SPAOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestBackend_ProtectedResourceNeedsSession(t *testing.T) {
	b := NewBackend(t)

	resp, err := http.Get(b.URL + "/api/user/favorites")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, b.Calls(http.MethodGet, "/api/user/favorites"))
}
