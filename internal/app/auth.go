package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/adrenalink/adrenalink/internal/cli/client"
	"github.com/adrenalink/adrenalink/internal/guard"
	"github.com/adrenalink/adrenalink/internal/session"
)

// MsgInvalidServerResponse is the message for a 2xx without a usable user
const MsgInvalidServerResponse = "invalid server response"

// AuthError is a form-level failure of login or signup. It is shown next to
// the form and never retried automatically.
type AuthError struct {
	StatusCode int // 0 when the request was never sent or succeeded
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Credentials is the login form
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupFields is the signup form
type SignupFields struct {
	Username string `json:"username" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var validate = validator.New()

// Login authenticates with the backend, records the session and navigates
// to the pending intent or the default landing page
func (c *Controller) Login(ctx context.Context, creds Credentials) (*client.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validateForm(creds); err != nil {
		return nil, err
	}

	resp, err := c.api.Login(ctx, client.LoginRequest{Email: creds.Email, Password: creds.Password})
	return c.completeAuth("login", resp, err)
}

// Signup registers an account and then behaves like Login
func (c *Controller) Signup(ctx context.Context, fields SignupFields) (*client.User, error) {
	fields.Email = strings.TrimSpace(fields.Email)
	fields.Username = strings.TrimSpace(fields.Username)
	fields.FullName = strings.TrimSpace(fields.FullName)
	if err := validateForm(fields); err != nil {
		return nil, err
	}

	resp, err := c.api.Signup(ctx, client.SignupRequest{
		Username: fields.Username,
		FullName: fields.FullName,
		Email:    fields.Email,
		Password: fields.Password,
	})
	return c.completeAuth("signup", resp, err)
}

func (c *Controller) completeAuth(action string, resp *client.AuthResponse, err error) (*client.User, error) {
	if err != nil {
		return nil, c.authFailure(action, err)
	}
	if resp == nil || resp.User == nil || resp.User.Role == "" {
		c.logger.Warn().Str("action", action).Msg("Auth response without user role")
		return nil, &AuthError{Message: MsgInvalidServerResponse}
	}
	user := *resp.User

	if err := c.users.SaveUser(user); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to store user")
	}
	c.store.Login(user)

	target := c.landing(c.takeIntent())
	c.history.Replace(target)

	c.logger.Debug().Str("action", action).Str("role", user.Role).Str("next", target).Msg("Authenticated")
	return &user, nil
}

// landing resolves where a fresh login goes: the intent with aliases
// followed, the default page without one, home when the intent's guard
// turns the new identity away
func (c *Controller) landing(intent string) string {
	if intent == "" {
		intent = DefaultLandingPath
	}
	m, err := c.resolve(intent)
	if err != nil {
		c.logger.Debug().Err(err).Str("intent", intent).Msg("Ignoring unusable intent")
		if m, err = c.resolve(DefaultLandingPath); err != nil {
			return session.HomePath
		}
	}

	// The login response just confirmed the identity
	st := c.store.State()
	st.Bootstrapping = false
	if guard.Evaluate(st, m.Route.Requirement()) != guard.Allowed {
		return session.HomePath
	}
	return m.Path
}

// authFailure maps client errors to what the form shows. Network failures
// pass through unchanged so callers can offer a retry.
func (c *Controller) authFailure(action string, err error) error {
	var httpErr *client.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return &AuthError{StatusCode: httpErr.StatusCode, Message: httpErr.Message, Err: err}
	case errors.Is(err, client.ErrMalformedResponse):
		return &AuthError{Message: MsgInvalidServerResponse, Err: err}
	case client.IsNetworkError(err):
		return err
	default:
		return fmt.Errorf("%s failed: %w", action, err)
	}
}

func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &AuthError{Message: err.Error(), Err: err}
	}

	first := fieldErrs[0]
	field := fieldLabel(first.Field())
	var msg string
	switch first.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &AuthError{Message: msg, Err: err}
}

func fieldLabel(field string) string {
	switch field {
	case "FullName":
		return "full name"
	default:
		return strings.ToLower(field)
	}
}
