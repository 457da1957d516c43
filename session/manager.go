// Package session owns the client's authentication state: the in-memory
// credentials the pipeline reads on every request, and the persisted set
// restored across process restarts.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/authapi"
	"github.com/tktapps/arrivals-client/credentials"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusAnonymous      Status = "ANONYMOUS"
	StatusAuthenticating Status = "AUTHENTICATING"
	StatusAuthenticated  Status = "AUTHENTICATED"
	StatusAnonymousError Status = "ANONYMOUS_ERROR"
)

// Manager holds the session state machine. It implements the pipeline's
// TokenState so refreshed tokens and forced logouts flow back into it.
type Manager struct {
	auth   *authapi.Service
	store  credentials.Store
	logger zerolog.Logger

	mu      sync.RWMutex
	status  Status
	creds   *credentials.Credentials
	lastErr error
}

// Option modifies a Manager instance.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a session manager in the anonymous state. The auth
// service must run over the raw transport, not the pipeline.
func NewManager(auth *authapi.Service, store credentials.Store, options ...Option) (*Manager, error) {
	if auth == nil {
		return nil, pkgerrors.New("[session.NewManager] auth service is required")
	}
	if store == nil {
		return nil, pkgerrors.New("[session.NewManager] credential store is required")
	}

	m := &Manager{
		auth:   auth,
		store:  store,
		status: StatusAnonymous,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Err returns the failure that moved the session to ANONYMOUS_ERROR, if any.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Credentials returns a copy of the authenticated session's credentials.
func (m *Manager) Credentials() (credentials.Credentials, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return credentials.Credentials{}, false
	}
	return *m.creds, true
}

// Login authenticates against the backend and persists the credential set.
// On success the session is AUTHENTICATED; on rejection it is
// ANONYMOUS_ERROR carrying the server's message.
func (m *Manager) Login(ctx context.Context, mobileNumber, pin, tenantID string) (*credentials.Credentials, error) {
	m.setStatus(StatusAuthenticating, nil)

	result, err := m.auth.Login(ctx, mobileNumber, pin, tenantID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("login failed")
		m.setStatus(StatusAnonymousError, err)
		return nil, err
	}

	creds := credentials.Credentials{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         result.User,
		TenantID:     tenantID,
	}
	if err := m.persist(creds); err != nil {
		// Roll back so a half-written set can never be restored.
		m.dropSession(StatusAnonymousError, err)
		return nil, err
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.creds = &creds
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info().Str("tenant", tenantID).Int64("user_id", creds.User.ID).Msg("logged in")
	return &creds, nil
}

// Logout ends the session. The server call is best-effort; local state and
// persisted credentials are always cleared.
func (m *Manager) Logout(ctx context.Context) {
	refreshToken, err := m.store.Get(credentials.KeyRefreshToken)
	if err == nil && refreshToken != "" {
		if err := m.auth.Logout(ctx, refreshToken); err != nil {
			m.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	m.dropSession(StatusAnonymous, nil)
	m.logger.Info().Msg("logged out")
}

// RestoreSession rebuilds the session from persisted credentials without a
// server round-trip. All of access token, refresh token, and user must be
// present; anything less, including store read failures, means anonymous.
// Token validity is confirmed lazily by the pipeline's refresh path on the
// first real call.
func (m *Manager) RestoreSession() (*credentials.Credentials, error) {
	m.setStatus(StatusAuthenticating, nil)

	accessToken, err := m.store.Get(credentials.KeyAccessToken)
	if err != nil || accessToken == "" {
		return m.restoreFailed(err)
	}
	refreshToken, err := m.store.Get(credentials.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		return m.restoreFailed(err)
	}
	userValue, err := m.store.Get(credentials.KeyUser)
	if err != nil || userValue == "" {
		return m.restoreFailed(err)
	}
	user, err := credentials.DecodeProfile(userValue)
	if err != nil {
		return m.restoreFailed(err)
	}

	// Tenant is informational; its absence does not invalidate the session.
	tenantID, err := m.store.Get(credentials.KeyTenantID)
	if err != nil {
		tenantID = ""
	}

	creds := credentials.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		TenantID:     tenantID,
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.creds = &creds
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info().Int64("user_id", user.ID).Msg("session restored")
	return &creds, nil
}

func (m *Manager) restoreFailed(cause error) (*credentials.Credentials, error) {
	if cause != nil && !pkgerrors.Is(cause, credentials.ErrNotFound) {
		m.logger.Warn().Err(cause).Msg("credential store unreadable, treating as no session")
	}
	m.setStatus(StatusAnonymous, nil)
	return nil, api.ErrNoSession
}

// AccessToken implements pipeline.TokenState.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil || m.creds.AccessToken == "" {
		return "", false
	}
	return m.creds.AccessToken, true
}

// UpdateAccessToken implements pipeline.TokenState. Called by the pipeline
// after a successful refresh. The persisted token and the in-memory one are
// updated under the same lock that logout clears them under, so a session
// ended mid-refresh can never get the new token written back: the update
// reports false and the store stays empty.
func (m *Manager) UpdateAccessToken(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return false
	}
	if err := m.store.Set(credentials.KeyAccessToken, token); err != nil {
		// The in-memory token still works for this process; the next restore
		// will re-authenticate via the refresh path.
		m.logger.Error().Err(err).Msg("failed to persist refreshed access token")
	}
	updated := *m.creds
	updated.AccessToken = token
	m.creds = &updated
	return true
}

// ForceLogout implements pipeline.TokenState. Called when a refresh cycle
// fails; the persisted set is wiped and the session becomes anonymous.
func (m *Manager) ForceLogout() {
	m.dropSession(StatusAnonymous, nil)
	m.logger.Warn().Msg("session expired, forced logout")
}

// TokenExpiry reports the current access token's expiry claim. The token is
// decoded without signature verification; only the server can vouch for it.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token, ok := m.AccessToken()
	if !ok {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// persist writes the credential set in a fixed order: access token, refresh
// token, user, tenant. A crash mid-write leaves the token pair either both
// present or both cleared before user and tenant are touched.
func (m *Manager) persist(creds credentials.Credentials) error {
	userValue, err := credentials.EncodeProfile(creds.User)
	if err != nil {
		return err
	}
	writes := []struct{ key, value string }{
		{credentials.KeyAccessToken, creds.AccessToken},
		{credentials.KeyRefreshToken, creds.RefreshToken},
		{credentials.KeyUser, userValue},
		{credentials.KeyTenantID, creds.TenantID},
	}
	for _, w := range writes {
		if err := m.store.Set(w.key, w.value); err != nil {
			return &api.StorageError{Key: w.key, Err: err}
		}
	}
	return nil
}

// dropSession clears the persisted set and the in-memory credentials as one
// step under the manager's lock, serializing against UpdateAccessToken.
func (m *Manager) dropSession(status Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPersistedLocked()
	m.status = status
	m.lastErr = err
	m.creds = nil
}

// clearPersistedLocked deletes all four keys, mirroring the persist order.
// Individual failures are logged and skipped so logout always completes.
// Callers hold m.mu.
func (m *Manager) clearPersistedLocked() {
	for _, key := range []string{
		credentials.KeyAccessToken,
		credentials.KeyRefreshToken,
		credentials.KeyUser,
		credentials.KeyTenantID,
	} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("failed to clear credential")
		}
	}
}

func (m *Manager) setStatus(status Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.lastErr = err
	if status == StatusAnonymous || status == StatusAnonymousError {
		m.creds = nil
	}
}
