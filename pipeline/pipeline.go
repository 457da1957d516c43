// Package pipeline wraps the transport with bearer-token attachment,
// expired-session detection, single-flight token refresh, and request
// replay. Every domain call goes through it and behaves as "authenticated if
// possible, else fail with a typed error".
package pipeline

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/credentials"
	"github.com/tktapps/arrivals-client/transport"
)

// maxReplays caps how many times a request may be re-issued after a token
// refresh. A replayed request that is rejected again fails with
// ErrSessionExpired instead of starting another refresh cycle.
const maxReplays = 1

// TokenState is the in-memory session view the pipeline reads and updates.
// Implemented by the session manager.
type TokenState interface {
	// AccessToken returns the current access token, if one is held.
	AccessToken() (string, bool)
	// UpdateAccessToken replaces the access token after a refresh, in memory
	// and in the credential store. Reports false without touching either if
	// the session was ended while the refresh was in flight; a logged-out
	// store must stay empty.
	UpdateAccessToken(token string) bool
	// ForceLogout clears all persisted credentials and moves the session to
	// anonymous. Called when a refresh cycle cannot recover the session.
	ForceLogout()
}

var _ transport.Sender = (*Pipeline)(nil)

// Pipeline is constructed once per process with its collaborators injected.
type Pipeline struct {
	transport transport.Sender
	store     credentials.Store
	session   TokenState
	logger    zerolog.Logger

	mu       sync.Mutex
	inflight *refreshCall
}

// refreshCall is one in-flight refresh cycle. The first request to observe
// an expired session owns it; later arrivals wait on done and share the
// outcome.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Option modifies a Pipeline instance.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a Pipeline over the raw transport. The session's token state
// is read on every send and updated when a refresh succeeds.
func New(tr transport.Sender, store credentials.Store, session TokenState, options ...Option) (*Pipeline, error) {
	if tr == nil {
		return nil, pkgerrors.New("[pipeline.New] transport is required")
	}
	if store == nil {
		return nil, pkgerrors.New("[pipeline.New] credential store is required")
	}
	if session == nil {
		return nil, pkgerrors.New("[pipeline.New] session state is required")
	}

	p := &Pipeline{
		transport: tr,
		store:     store,
		session:   session,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Send executes req with the current access token attached. A single
// expired-session response is recovered transparently: the pipeline refreshes
// the token (sharing one refresh across concurrent callers) and replays the
// request once. All other failures surface as typed errors.
func (p *Pipeline) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	token, authenticated := p.session.AccessToken()
	if authenticated {
		req.Header().Set("Authorization", "Bearer "+token)
	}

	requestID := uuid.New().String()
	logger := p.logger.With().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()

	resp, err := p.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Status != http.StatusUnauthorized || !authenticated {
		if err := api.ResponseError(resp.Status, resp.Body); err != nil {
			return nil, err
		}
		return resp, nil
	}

	// Expired-session response. A request that has already been replayed
	// never starts a second refresh cycle.
	if req.Replays >= maxReplays {
		logger.Warn().Msg("replayed request rejected again")
		return nil, api.ErrSessionExpired
	}

	logger.Debug().Msg("access token rejected, refreshing")
	newToken, err := p.awaitRefresh(ctx, token)
	if err != nil {
		return nil, err
	}

	req.Replays++
	req.Header().Set("Authorization", "Bearer "+newToken)
	replayResp, err := p.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if replayResp.Status == http.StatusUnauthorized {
		logger.Warn().Msg("replay rejected with fresh token")
		return nil, api.ErrSessionExpired
	}
	if err := api.ResponseError(replayResp.Status, replayResp.Body); err != nil {
		return nil, err
	}
	logger.Debug().Msg("replay succeeded")
	return replayResp, nil
}

// awaitRefresh returns a fresh access token, starting a refresh cycle if
// none is in flight and otherwise waiting on the one that is. At most one
// refresh call reaches the server at any time. staleToken is the token the
// rejected request carried; if a refresh settled while that request was in
// flight, the already-renewed token is reused without another refresh.
func (p *Pipeline) awaitRefresh(ctx context.Context, staleToken string) (string, error) {
	p.mu.Lock()
	if call := p.inflight; call != nil {
		p.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", &api.NetworkError{Op: "refresh wait", Err: ctx.Err()}
		}
	}

	if current, ok := p.session.AccessToken(); ok && current != staleToken {
		p.mu.Unlock()
		return current, nil
	}

	call := &refreshCall{done: make(chan struct{})}
	p.inflight = call
	p.mu.Unlock()

	call.token, call.err = p.refresh(ctx)

	p.mu.Lock()
	p.inflight = nil
	p.mu.Unlock()
	close(call.done)

	return call.token, call.err
}

// refreshResponse is the payload of a successful POST /auth/refresh.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// refresh performs one refresh call straight through the transport,
// bypassing the pipeline so a rejected refresh can never recurse into
// another refresh. Any failure forces a logout.
func (p *Pipeline) refresh(ctx context.Context) (string, error) {
	refreshToken, err := p.store.Get(credentials.KeyRefreshToken)
	if err != nil {
		p.logger.Warn().Err(err).Msg("no refresh token available")
		p.session.ForceLogout()
		return "", api.ErrSessionExpired
	}

	resp, err := p.transport.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refreshToken": refreshToken},
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("refresh call failed")
		p.session.ForceLogout()
		return "", pkgerrors.Wrap(api.ErrSessionExpired, err.Error())
	}
	if !resp.OK() {
		p.logger.Warn().Int("status", resp.Status).Msg("refresh rejected")
		p.session.ForceLogout()
		return "", api.ErrSessionExpired
	}

	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		p.session.ForceLogout()
		return "", api.ErrSessionExpired
	}
	payload, err := api.Decode[refreshResponse](env)
	if err != nil || payload.AccessToken == "" {
		p.session.ForceLogout()
		return "", api.ErrSessionExpired
	}

	if !p.session.UpdateAccessToken(payload.AccessToken) {
		// Logged out while the refresh was in flight; drop the new token so
		// the wiped store stays wiped.
		p.logger.Warn().Msg("session ended during refresh, discarding new token")
		return "", api.ErrSessionExpired
	}
	p.logger.Info().Msg("access token refreshed")
	return payload.AccessToken, nil
}
