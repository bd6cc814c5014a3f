package api

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	battlecard "github.com/battlecardhq/battlecard-go"
)

// AuthService handles login, logout and credential management.
type AuthService struct {
	core *battlecard.Client
}

// Login exchanges email and password for a token pair via the backend's
// OAuth2 password grant and installs the pair on the core client. The form
// post goes straight through the shared http.Client rather than the retry
// pipeline: interactive logins should fail fast, not back off.
func (s *AuthService) Login(ctx context.Context, email, password string) (*battlecard.TokenPair, error) {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.core.BaseURL() + "/auth/login",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.core.HTTPClient())

	tok, err := conf.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, loginError(err)
	}
	pair := &battlecard.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if err := s.core.SetTokenPair(ctx, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

// loginError converts oauth2 failures into the standard envelope so callers
// see the same error surface as every other endpoint.
func loginError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		resp := &battlecard.Response{
			StatusCode: rerr.Response.StatusCode,
			Header:     rerr.Response.Header,
			Body:       rerr.Body,
		}
		if apiErr := battlecard.Classify(http.MethodPost, "/auth/login", resp, nil); apiErr != nil {
			return apiErr
		}
		return err
	}
	if apiErr := battlecard.Classify(http.MethodPost, "/auth/login", nil, err); apiErr != nil {
		return apiErr
	}
	return err
}

// Logout revokes the refresh token server-side, then drops local
// credentials. Local state is cleared even when the server call fails, so a
// dead backend cannot pin a session on disk.
func (s *AuthService) Logout(ctx context.Context) error {
	var ack MessageResponse
	err := s.core.Post(ctx, "/auth/logout", nil, &ack)
	if clearErr := s.core.Logout(ctx); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// TokenStatus reports what the server thinks of the current access token.
type TokenStatus struct {
	Valid     bool  `json:"valid"`
	UserID    int   `json:"user_id"`
	Role      Role  `json:"role"`
	ExpiresIn int64 `json:"expires_in"`
}

// ValidateToken asks the server to confirm the current access token.
func (s *AuthService) ValidateToken(ctx context.Context) (*TokenStatus, error) {
	var status TokenStatus
	if err := s.core.Post(ctx, "/auth/validate-token", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ChangePassword rotates the account password. The server revokes the
// refresh token as part of the change, so the session ends at access token
// expiry and the user must log in again.
func (s *AuthService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	var ack MessageResponse
	return s.core.Post(ctx, "/auth/change-password", body, &ack)
}
