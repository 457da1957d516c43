// Package authapi provides the typed authentication operations of the
// backend: login, refresh, and logout.
package authapi

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/credentials"
	"github.com/tktapps/arrivals-client/transport"
)

// Service calls the /auth endpoints over the given sender. The session
// manager runs it over the raw transport; these calls must not pass through
// the authenticated pipeline, whose refresh handling would misread a
// credential rejection as an expired session.
type Service struct {
	sender transport.Sender
}

// New creates an auth service.
func New(sender transport.Sender) *Service {
	return &Service{sender: sender}
}

// LoginResult is the payload of a successful POST /auth/login.
type LoginResult struct {
	AccessToken  string                  `json:"accessToken"`
	RefreshToken string                  `json:"refreshToken"`
	TokenType    string                  `json:"tokenType"`
	ExpiresIn    int64                   `json:"expiresIn"`
	User         credentials.UserProfile `json:"user"`
}

type loginRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Pin          string `json:"pin"`
	TenantID     string `json:"tenantId"`
}

// Login exchanges a mobile number, PIN, and tenant for a token pair.
func (s *Service) Login(ctx context.Context, mobileNumber, pin, tenantID string) (*LoginResult, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{MobileNumber: mobileNumber, Pin: pin, TenantID: tenantID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] send")
	}
	if err := api.ResponseError(resp.Status, resp.Body); err != nil {
		return nil, err
	}

	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] envelope")
	}
	result, err := api.Decode[LoginResult](env)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] payload")
	}
	return &result, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refreshToken": refreshToken},
	})
	if err != nil {
		return "", errors.Wrap(err, "[Service.Refresh] send")
	}
	if err := api.ResponseError(resp.Status, resp.Body); err != nil {
		return "", err
	}

	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Refresh] envelope")
	}
	payload, err := api.Decode[struct {
		AccessToken string `json:"accessToken"`
	}](env)
	if err != nil {
		return "", errors.Wrap(err, "[Service.Refresh] payload")
	}
	return payload.AccessToken, nil
}

// Logout invalidates a refresh token server-side.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Body:   map[string]string{"refreshToken": refreshToken},
	})
	if err != nil {
		return errors.Wrap(err, "[Service.Logout] send")
	}
	return api.ResponseError(resp.Status, resp.Body)
}
