package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Auth endpoints of the Adrenalink backend
const (
	CheckAuthPath = "/api/check-auth"
	LoginPath     = "/api/login"
	SignupPath    = "/api/signup"
	LogoutPath    = "/api/logout"
)

// ID is a user identifier. The backend sends integers from SQL rows, other
// deployments send strings; both decode here.
type ID string

// UnmarshalJSON accepts a JSON string or number
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric IDs back as numbers
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// User represents the user record returned by login, signup and check-auth
type User struct {
	ID       ID     `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// CheckAuthResponse represents the session verification response
type CheckAuthResponse struct {
	LoggedIn bool  `json:"logged_in"`
	User     *User `json:"user,omitempty"`
	// UserRole is the flat role field some backend revisions send instead of user.role
	UserRole string `json:"user_role,omitempty"`
}

// Role returns the confirmed role, preferring user.role
func (r *CheckAuthResponse) Role() string {
	if r.User != nil && r.User.Role != "" {
		return r.User.Role
	}
	return r.UserRole
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the login and signup response
type AuthResponse struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user"`
}

// CheckAuth verifies the current session with the backend
// A response without an explicit logged_in is malformed, not a logout.
func (c *Client) CheckAuth(ctx context.Context) (*CheckAuthResponse, error) {
	var wire struct {
		LoggedIn *bool  `json:"logged_in"`
		User     *User  `json:"user"`
		UserRole string `json:"user_role"`
	}
	if err := c.Get(ctx, CheckAuthPath, &wire); err != nil {
		return nil, err
	}
	if wire.LoggedIn == nil {
		return nil, fmt.Errorf("%w: check-auth response has no logged_in", ErrMalformedResponse)
	}
	return &CheckAuthResponse{
		LoggedIn: *wire.LoggedIn,
		User:     wire.User,
		UserRole: wire.UserRole,
	}, nil
}

// Login authenticates the user; the session cookie lands in the jar
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Send(ctx, http.MethodPost, LoginPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup registers a new account and starts a session
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Send(ctx, http.MethodPost, SignupPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the backend session
func (c *Client) Logout(ctx context.Context) error {
	return c.Send(ctx, http.MethodPost, LogoutPath, nil, nil)
}
