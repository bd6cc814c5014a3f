// token.go
// --------
// The TokenManager owns the access/refresh token pair. It is the only
// component that touches token storage, it coordinates a single in-flight
// refresh across concurrent callers, and it tears the session down when a
// refresh is rejected.
package battlecard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// expirySkew refreshes slightly ahead of the recorded expiry so a token does
// not lapse mid-exchange.
const expirySkew = 30 * time.Second

// TokenPair is the credential set issued by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// expired reports whether the access token is past (or within skew of) its
// recorded expiry. A zero ExpiresAt means the expiry is unknown and the pair
// is used until the server rejects it.
func (p *TokenPair) expired() bool {
	if p == nil || p.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(p.ExpiresAt.Add(-expirySkew))
}

// refreshFunc performs the actual refresh exchange. Wired by the client so
// the manager stays transport-agnostic.
type refreshFunc func(ctx context.Context, refreshToken string) (*TokenPair, error)

// refreshCall is one in-flight refresh shared by every caller that arrives
// while it is outstanding.
type refreshCall struct {
	done chan struct{}
	pair *TokenPair
	err  error
}

func (c *refreshCall) wait(ctx context.Context) (*TokenPair, error) {
	select {
	case <-c.done:
		return c.pair, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TokenManager holds the token pair, persisting changes through a TokenStore
// and guaranteeing at most one refresh exchange process-wide.
type TokenManager struct {
	store   TokenStore
	refresh refreshFunc
	logger  *slog.Logger

	mu       sync.Mutex
	pair     *TokenPair
	loaded   bool
	invalid  bool
	inflight *refreshCall
}

func newTokenManager(store TokenStore, logger *slog.Logger) *TokenManager {
	return &TokenManager{store: store, logger: logger}
}

// EnsureAuthorized returns the access token to attach to an outbound
// exchange. An empty token with a nil error means the client is simply not
// authenticated yet. A pair with a lapsed expiry is refreshed before use.
func (m *TokenManager) EnsureAuthorized(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.invalid {
		m.mu.Unlock()
		return "", sessionExpiredError(nil)
	}
	if err := m.loadLocked(ctx); err != nil {
		m.mu.Unlock()
		return "", err
	}
	pair := m.pair
	m.mu.Unlock()

	if pair == nil || pair.AccessToken == "" {
		return "", nil
	}
	if pair.expired() && pair.RefreshToken != "" {
		refreshed, err := m.Refresh(ctx)
		if err != nil {
			return "", err
		}
		return refreshed.AccessToken, nil
	}
	return pair.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new pair. If a refresh is
// already outstanding, the caller waits for that one instead of issuing a
// second exchange. Any failure tears the session down: tokens are cleared
// and every caller, current and future, receives a session-expired envelope
// until re-authentication.
func (m *TokenManager) Refresh(ctx context.Context) (*TokenPair, error) {
	m.mu.Lock()
	if m.invalid {
		m.mu.Unlock()
		return nil, sessionExpiredError(nil)
	}
	if m.inflight != nil {
		call := m.inflight
		m.mu.Unlock()
		return call.wait(ctx)
	}
	if err := m.loadLocked(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	var refreshToken string
	if m.pair != nil {
		refreshToken = m.pair.RefreshToken
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	pair, err := m.doRefresh(ctx, refreshToken)

	m.mu.Lock()
	m.inflight = nil
	if err != nil {
		m.teardownLocked(ctx)
		err = sessionExpiredError(err)
	} else {
		m.pair = pair
		m.persistLocked(ctx, pair)
	}
	m.mu.Unlock()

	call.pair, call.err = pair, err
	close(call.done)
	return pair, err
}

func (m *TokenManager) doRefresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if m.refresh == nil {
		return nil, errors.New("battlecard: refresh exchange not configured")
	}
	// Detach from the caller so waiters still get their answer if this
	// caller gives up; the exchange itself carries its own timeout.
	pair, err := m.refresh(context.WithoutCancel(ctx), refreshToken)
	if err != nil {
		return nil, err
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, errors.New("battlecard: refresh returned no access token")
	}
	normalizeExpiry(pair)
	return pair, nil
}

// SetTokenPair installs a freshly issued pair, persists it, and lifts any
// session-expired poisoning. Called after login.
func (m *TokenManager) SetTokenPair(ctx context.Context, pair *TokenPair) error {
	if pair == nil || pair.AccessToken == "" {
		return errors.New("battlecard: token pair must carry an access token")
	}
	normalizeExpiry(pair)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	m.loaded = true
	m.invalid = false
	m.persistLocked(ctx, pair)
	return nil
}

// Invalidate clears the stored pair. Used by logout; the next call simply
// runs unauthenticated rather than session-expired.
func (m *TokenManager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = nil
	m.loaded = true
	m.invalid = false
	var firstErr error
	for _, key := range []string{StorageKeyAccessToken, StorageKeyRefreshToken} {
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrTokenNotFound) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Authenticated reports whether a usable access token is on hand.
func (m *TokenManager) Authenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalid {
		return false
	}
	if err := m.loadLocked(ctx); err != nil {
		return false
	}
	return m.pair != nil && m.pair.AccessToken != ""
}

// loadLocked pulls the persisted pair into memory on first use. Missing keys
// mean an unauthenticated client, not an error.
func (m *TokenManager) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	access, err := m.store.Get(ctx, StorageKeyAccessToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			m.loaded = true
			return nil
		}
		return err
	}
	refresh, err := m.store.Get(ctx, StorageKeyRefreshToken)
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		return err
	}
	pair := &TokenPair{AccessToken: access, RefreshToken: refresh}
	normalizeExpiry(pair)
	m.pair = pair
	m.loaded = true
	return nil
}

// persistLocked writes the pair under the two well-known keys. Persistence
// failure degrades to in-memory tokens rather than failing the refresh that
// just succeeded.
func (m *TokenManager) persistLocked(ctx context.Context, pair *TokenPair) {
	if err := m.store.Set(ctx, StorageKeyAccessToken, pair.AccessToken); err != nil {
		m.logger.WarnContext(ctx, "persisting access token failed", "error", err)
	}
	if pair.RefreshToken != "" {
		if err := m.store.Set(ctx, StorageKeyRefreshToken, pair.RefreshToken); err != nil {
			m.logger.WarnContext(ctx, "persisting refresh token failed", "error", err)
		}
	}
}

// teardownLocked wipes tokens and poisons the manager. Every subsequent call
// fails fast with a session-expired envelope until SetTokenPair.
func (m *TokenManager) teardownLocked(ctx context.Context) {
	m.pair = nil
	m.loaded = true
	m.invalid = true
	for _, key := range []string{StorageKeyAccessToken, StorageKeyRefreshToken} {
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrTokenNotFound) {
			m.logger.WarnContext(ctx, "clearing stored token failed", "key", key, "error", err)
		}
	}
	m.logger.WarnContext(ctx, "session torn down, re-authentication required")
}

// normalizeExpiry fills ExpiresAt from expires_in when the server provided
// it, falling back to the exp claim of the access token itself.
func normalizeExpiry(pair *TokenPair) {
	if !pair.ExpiresAt.IsZero() {
		return
	}
	if pair.ExpiresIn > 0 {
		pair.ExpiresAt = time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
		return
	}
	pair.ExpiresAt = tokenExpiry(pair.AccessToken)
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// client only schedules refreshes with it, the server remains the authority.
func tokenExpiry(accessToken string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// sessionExpiredError builds the terminal envelope surfaced after the
// refresh flow fails.
func sessionExpiredError(cause error) *Error {
	if cause == nil {
		cause = ErrSessionExpired
	}
	return &Error{
		Kind:      KindSessionExpired,
		Code:      CodeSessionExpired,
		Message:   "session expired, please sign in again",
		Timestamp: time.Now().UTC(),
		Retryable: false,
		Cause:     cause,
	}
}
