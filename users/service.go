// Package users provides the admin user-management operations.
package users

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/credentials"
	"github.com/tktapps/arrivals-client/transport"
)

// User is a staff or admin account as returned by the backend.
type User struct {
	ID           int64            `json:"id"`
	MobileNumber string           `json:"mobileNumber"`
	Role         credentials.Role `json:"role"`
	Active       *bool            `json:"active"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// CreateInput carries the fields for creating an account.
type CreateInput struct {
	MobileNumber string           `json:"mobileNumber"`
	Pin          string           `json:"pin"`
	Role         credentials.Role `json:"role"`
}

// Service issues user-management calls through the authenticated pipeline.
type Service struct {
	sender transport.Sender
}

// New creates a users service over the given sender.
func New(sender transport.Sender) *Service {
	return &Service{sender: sender}
}

// GetAll lists every account.
func (s *Service) GetAll(ctx context.Context) ([]User, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{Method: http.MethodGet, Path: "/users"})
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	return api.Decode[[]User](env)
}

// GetByID fetches a single account.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%d", id),
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(resp.Body)
}

// Create registers a new staff or admin account.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/users",
		Body:   input,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser(resp.Body)
}

func decodeUser(body []byte) (*User, error) {
	env, err := api.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}
	u, err := api.Decode[User](env)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
