// Package attendance provides the typed arrival-tracking operations.
package attendance

import (
	"context"
	"net/http"
	"time"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/transport"
	"github.com/tktapps/arrivals-client/vehicles"
)

// Visit is one recorded arrival.
type Visit struct {
	ID             int64            `json:"id"`
	Vehicle        vehicles.Vehicle `json:"vehicle"`
	VisitDate      string           `json:"visitDate"`
	ArrivedAt      time.Time        `json:"arrivedAt"`
	MarkedByID     int64            `json:"markedById"`
	MarkedByMobile string           `json:"markedByMobile"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Service issues attendance calls through the authenticated pipeline.
type Service struct {
	sender transport.Sender
}

// New creates an attendance service over the given sender.
func New(sender transport.Sender) *Service {
	return &Service{sender: sender}
}

// MarkArrival records today's arrival for a vehicle.
func (s *Service) MarkArrival(ctx context.Context, vehicleNumber string) (*Visit, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/attendance/mark-arrival",
		Body:   map[string]string{"vehicleNumber": vehicleNumber},
	})
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	v, err := api.Decode[Visit](env)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetUnmarkedToday lists registered vehicles with no arrival yet today.
func (s *Service) GetUnmarkedToday(ctx context.Context) ([]vehicles.Vehicle, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/attendance/unmarked-today",
	})
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	return api.Decode[[]vehicles.Vehicle](env)
}

// GetVisitsToday lists today's arrivals.
func (s *Service) GetVisitsToday(ctx context.Context) ([]Visit, error) {
	return s.visits(ctx, "/attendance/visits-today")
}

// GetVisitsByDate lists arrivals for a specific day (YYYY-MM-DD).
func (s *Service) GetVisitsByDate(ctx context.Context, date string) ([]Visit, error) {
	return s.visits(ctx, "/attendance/visits/"+date)
}

func (s *Service) visits(ctx context.Context, path string) ([]Visit, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	return api.Decode[[]Visit](env)
}
