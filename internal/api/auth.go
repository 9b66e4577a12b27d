// ABOUTME: Authentication operations: register, login, me, and token refresh
// ABOUTME: These endpoints are unauthenticated except Me and never enter the retry path

package api

import (
	"context"

	"github.com/docent-ai/docent/internal/session"
)

// AuthResult is the outcome of a successful register or login. User is only
// populated by register; login returns tokens alone.
type AuthResult struct {
	User       *User
	Credential session.Credential
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type authResponse struct {
	User    *wireUser `json:"user,omitempty"`
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
}

// Register creates a new account. The backend issues tokens alongside the
// user, so registering doubles as a login.
func (c *Client) Register(ctx context.Context, username, password, email string) (*AuthResult, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "must not be empty"}
	}

	var resp authResponse
	req := registerRequest{Username: username, Password: password, Email: email}
	if err := c.doPublic(ctx, "POST", "/auth/register", req, &resp); err != nil {
		return nil, err
	}

	result := &AuthResult{
		Credential: session.Credential{AccessToken: resp.Access, RefreshToken: resp.Refresh},
	}
	if resp.User != nil {
		u := resp.User.toDomain()
		result.User = &u
	}
	return result, nil
}

// Login exchanges username/password for an access/refresh token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "must not be empty"}
	}

	var resp authResponse
	if err := c.doPublic(ctx, "POST", "/auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}

	return &AuthResult{
		Credential: session.Credential{AccessToken: resp.Access, RefreshToken: resp.Refresh},
	}, nil
}

// Me returns the authenticated account's identity.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp wireUser
	if err := c.do(ctx, "GET", "/auth/me", nil, &resp); err != nil {
		return User{}, err
	}
	return resp.toDomain(), nil
}

// RefreshAccess exchanges a refresh token for a new access token. Its
// signature matches session.RefreshFunc so it can be wired straight into the
// session manager.
func (c *Client) RefreshAccess(ctx context.Context, refreshToken string) (session.Credential, error) {
	var resp authResponse
	if err := c.doPublic(ctx, "POST", "/auth/refresh", refreshRequest{Refresh: refreshToken}, &resp); err != nil {
		return session.Credential{}, err
	}
	// The backend may or may not rotate the refresh token; the session
	// manager keeps the old one when Refresh comes back empty.
	return session.Credential{AccessToken: resp.Access, RefreshToken: resp.Refresh}, nil
}
