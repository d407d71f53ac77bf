package client

import (
	"context"

	"github.com/bottlecrm/authd/internal/api"
	"github.com/bottlecrm/authd/internal/buildinfo"
	"github.com/bottlecrm/authd/internal/core"
)

// Login authenticates with email and password and returns the issued
// credential.
func (c *Client) Login(ctx context.Context, email, password string) (*api.CredentialResponse, string, error) {
	var resp api.CredentialResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.LoginRoute).
		build(), api.LoginPayload{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Register creates an account and returns its first credential.
func (c *Client) Register(ctx context.Context, name, email, password string) (*api.CredentialResponse, string, error) {
	var resp api.CredentialResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.RegisterRoute).
		build(), api.RegisterPayload{Name: name, Email: email, Password: password}, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Me returns the subject behind the configured auth token.
func (c *Client) Me(ctx context.Context) (*core.Subject, string, error) {
	var subject core.Subject
	correlation, err := c.get(ctx, c.url().
		setPath(api.MeRoute).
		build(), &subject)
	if err != nil {
		return nil, correlation, err
	}
	return &subject, correlation, nil
}

// Logout revokes the configured auth token.
func (c *Client) Logout(ctx context.Context) (string, error) {
	return c.post(ctx, c.url().
		setPath(api.LogoutRoute).
		build(), nil, nil)
}

// RevokeAll revokes every credential of the authenticated subject.
func (c *Client) RevokeAll(ctx context.Context) (*api.RevokeAllResponse, string, error) {
	var resp api.RevokeAllResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.RevokeAllRoute).
		build(), nil, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Info fetches the server's build information.
func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	if err != nil {
		return nil, correlation, err
	}
	return &info, correlation, nil
}
