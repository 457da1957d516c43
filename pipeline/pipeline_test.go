package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/credentials"
	"github.com/tktapps/arrivals-client/credentials/storefake"
	"github.com/tktapps/arrivals-client/pipeline"
	"github.com/tktapps/arrivals-client/transport"
)

// fakeSession is a minimal TokenState for driving the pipeline directly. It
// persists renewed tokens the way the real manager does: only while the
// session is alive, under the same lock that ends it.
type fakeSession struct {
	store        *storefake.FakeStore
	mu           sync.Mutex
	token        string
	ended        bool
	forcedLogout int
}

func (s *fakeSession) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *fakeSession) UpdateAccessToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.token = token
	_ = s.store.Set(credentials.KeyAccessToken, token)
	return true
}

func (s *fakeSession) ForceLogout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.ended = true
	s.forcedLogout++
}

// logout ends the session and wipes the store, as the manager's Logout does.
func (s *fakeSession) logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.ended = true
	for _, key := range []string{
		credentials.KeyAccessToken,
		credentials.KeyRefreshToken,
		credentials.KeyUser,
		credentials.KeyTenantID,
	} {
		_ = s.store.Delete(key)
	}
}

func (s *fakeSession) forced() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forcedLogout
}

// stubTransport scripts responses per request.
type stubTransport struct {
	handler func(req *transport.Request) (*transport.Response, error)
}

func (s *stubTransport) Send(_ context.Context, req *transport.Request) (*transport.Response, error) {
	return s.handler(req)
}

func okBody(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{"success": true, "data": json.RawMessage(raw), "message": "ok"})
	require.NoError(t, err)
	return body
}

func failBody(message string) []byte {
	return []byte(fmt.Sprintf(`{"success":false,"data":null,"message":%q}`, message))
}

type fixture struct {
	session *fakeSession
	store   *storefake.FakeStore
	p       *pipeline.Pipeline
}

func setup(t *testing.T, handler func(req *transport.Request) (*transport.Response, error)) *fixture {
	t.Helper()
	store := storefake.NewFakeStore()
	session := &fakeSession{token: "A1", store: store}
	require.NoError(t, store.Set(credentials.KeyAccessToken, "A1"))
	require.NoError(t, store.Set(credentials.KeyRefreshToken, "R1"))

	p, err := pipeline.New(&stubTransport{handler: handler}, store, session)
	require.NoError(t, err)
	return &fixture{session: session, store: store, p: p}
}

func TestAttachesBearerToken(t *testing.T) {
	var seenAuth string
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		seenAuth = req.Headers.Get("Authorization")
		return &transport.Response{Status: 200, Body: okBody(t, []string{})}, nil
	})

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	require.NoError(t, err)
	require.Equal(t, "Bearer A1", seenAuth)
}

func TestRefreshAndReplayOnExpiredToken(t *testing.T) {
	var refreshCalls, vehicleCalls int
	var replayAuth string
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		switch req.Path {
		case "/auth/refresh":
			refreshCalls++
			var body map[string]string
			raw, err := json.Marshal(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &body))
			require.Equal(t, "R1", body["refreshToken"])
			return &transport.Response{Status: 200, Body: okBody(t, map[string]string{"accessToken": "A2"})}, nil
		case "/vehicles":
			vehicleCalls++
			if req.Headers.Get("Authorization") != "Bearer A2" {
				return &transport.Response{Status: 401, Body: failBody("token expired")}, nil
			}
			replayAuth = req.Headers.Get("Authorization")
			return &transport.Response{Status: 200, Body: okBody(t, []string{"KA01AB1234"})}, nil
		}
		t.Fatalf("unexpected path %s", req.Path)
		return nil, nil
	})

	resp, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, 1, refreshCalls)
	require.Equal(t, 2, vehicleCalls)
	require.Equal(t, "Bearer A2", replayAuth)

	// The refreshed token is persisted and visible in memory.
	stored, err := f.store.Get(credentials.KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "A2", stored)
	token, ok := f.session.AccessToken()
	require.True(t, ok)
	require.Equal(t, "A2", token)
}

func TestReplayedRequestNeverRefreshesTwice(t *testing.T) {
	var refreshCalls int
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			refreshCalls++
			return &transport.Response{Status: 200, Body: okBody(t, map[string]string{"accessToken": "A2"})}, nil
		}
		// Rejects even the replayed request.
		return &transport.Response{Status: 401, Body: failBody("token expired")}, nil
	})

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	require.ErrorIs(t, err, api.ErrSessionExpired)
	require.Equal(t, 1, refreshCalls)
}

func TestConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	const n = 8

	var refreshCalls int32
	var rejected sync.WaitGroup
	rejected.Add(n)
	gate := make(chan struct{})

	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
			<-gate
			return &transport.Response{Status: 200, Body: okBody(t, map[string]string{"accessToken": "A2"})}, nil
		}
		if req.Headers.Get("Authorization") == "Bearer A2" {
			return &transport.Response{Status: 200, Body: okBody(t, []string{})}, nil
		}
		rejected.Done()
		return &transport.Response{Status: 401, Body: failBody("token expired")}, nil
	})

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
			errs <- err
		}()
	}

	// Hold the refresh open until every request has seen its 401, then let
	// the single refresh settle.
	rejected.Wait()
	close(gate)

	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
}

func TestRefreshRejectionForcesLogout(t *testing.T) {
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			return &transport.Response{Status: 401, Body: failBody("refresh token invalid")}, nil
		}
		return &transport.Response{Status: 401, Body: failBody("token expired")}, nil
	})

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	require.ErrorIs(t, err, api.ErrSessionExpired)
	require.Equal(t, 1, f.session.forced())
}

func TestMissingRefreshTokenFailsWithoutServerCall(t *testing.T) {
	var refreshCalls int
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			refreshCalls++
		}
		return &transport.Response{Status: 401, Body: failBody("token expired")}, nil
	})
	require.NoError(t, f.store.Delete(credentials.KeyRefreshToken))

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	require.ErrorIs(t, err, api.ErrSessionExpired)
	require.Equal(t, 0, refreshCalls)
	require.Equal(t, 1, f.session.forced())
}

func TestNonAuthFailureSurfacesAsAPIError(t *testing.T) {
	var refreshCalls int
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			refreshCalls++
		}
		return &transport.Response{Status: 409, Body: failBody("arrival already marked today")}, nil
	})

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodPost, Path: "/attendance/mark-arrival"})
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 409, apiErr.Status)
	require.Equal(t, "arrival already marked today", apiErr.Message)
	require.Equal(t, 0, refreshCalls)
}

func TestAnonymousUnauthorizedDoesNotRefresh(t *testing.T) {
	var refreshCalls int
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			refreshCalls++
		}
		return &transport.Response{Status: 401, Body: failBody("invalid credentials")}, nil
	})
	f.session.token = ""

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodPost, Path: "/auth/login"})
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 401, apiErr.Status)
	require.Equal(t, 0, refreshCalls)
}

func TestLogoutDuringRefreshDiscardsNewToken(t *testing.T) {
	refreshStarted := make(chan struct{})
	gate := make(chan struct{})

	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		if req.Path == "/auth/refresh" {
			close(refreshStarted)
			<-gate
			return &transport.Response{Status: 200, Body: okBody(t, map[string]string{"accessToken": "A2"})}, nil
		}
		return &transport.Response{Status: 401, Body: failBody("token expired")}, nil
	})

	result := make(chan error, 1)
	go func() {
		_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
		result <- err
	}()

	// Log out while the refresh is held open, then let it settle with A2.
	<-refreshStarted
	f.session.logout()
	close(gate)

	require.ErrorIs(t, <-result, api.ErrSessionExpired)

	// The settled refresh must not write the new token back into the wiped
	// store; a logged-out device holds no secrets.
	_, err := f.store.Get(credentials.KeyAccessToken)
	require.ErrorIs(t, err, credentials.ErrNotFound)
	require.Equal(t, 0, f.store.Len())
	_, ok := f.session.AccessToken()
	require.False(t, ok)
}

func TestNetworkErrorPassesThrough(t *testing.T) {
	netErr := &api.NetworkError{Op: "GET /vehicles", Err: errors.New("connection refused")}
	f := setup(t, func(req *transport.Request) (*transport.Response, error) {
		return nil, netErr
	})

	_, err := f.p.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	var gotErr *api.NetworkError
	require.ErrorAs(t, err, &gotErr)
}
