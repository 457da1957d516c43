// Package reports provides the typed daily, range, and multi-campus report
// operations.
package reports

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/attendance"
	"github.com/tktapps/arrivals-client/transport"
)

// DailyReport summarizes one day's arrivals.
type DailyReport struct {
	Date                    string             `json:"date"`
	TotalArrivals           int64              `json:"totalArrivals"`
	TotalRegisteredVehicles int64              `json:"totalRegisteredVehicles"`
	TotalCars               int64              `json:"totalCars"`
	TotalBikes              int64              `json:"totalBikes"`
	UnmarkedCount           int64              `json:"unmarkedCount"`
	Visits                  []attendance.Visit `json:"visits"`
}

// CampusStats is one campus's slice of the multi-campus dashboard.
type CampusStats struct {
	CampusName string `json:"campusName"`
	BikesCount int64  `json:"bikesCount"`
	CarsCount  int64  `json:"carsCount"`
	TotalCount int64  `json:"totalCount"`
}

// MultiCampusDashboard maps campus names to their arrival stats for a date.
type MultiCampusDashboard struct {
	Date        string                 `json:"date"`
	CampusStats map[string]CampusStats `json:"campusStats"`
}

// Service issues report calls through the authenticated pipeline.
type Service struct {
	sender transport.Sender
}

// New creates a reports service over the given sender.
func New(sender transport.Sender) *Service {
	return &Service{sender: sender}
}

// GetDaily fetches today's report.
func (s *Service) GetDaily(ctx context.Context) (*DailyReport, error) {
	return s.daily(ctx, "/reports/daily")
}

// GetDailyByDate fetches the report for a specific day (YYYY-MM-DD).
func (s *Service) GetDailyByDate(ctx context.Context, date string) (*DailyReport, error) {
	return s.daily(ctx, "/reports/daily/"+date)
}

// GetRange fetches daily reports between two dates inclusive.
func (s *Service) GetRange(ctx context.Context, startDate, endDate string) ([]DailyReport, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/reports/range",
		Query:  url.Values{"startDate": {startDate}, "endDate": {endDate}},
	})
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	return api.Decode[[]DailyReport](env)
}

// GetMultiCampusDashboard fetches per-campus arrival stats. A nil date means
// today.
func (s *Service) GetMultiCampusDashboard(ctx context.Context, date *string) (*MultiCampusDashboard, error) {
	req := &transport.Request{
		Method: http.MethodGet,
		Path:   "/admin/dashboard/multi-campus",
	}
	if date != nil {
		req.Query = url.Values{"date": {*date}}
	}
	resp, err := s.sender.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	dash, err := api.Decode[MultiCampusDashboard](env)
	if err != nil {
		return nil, err
	}
	return &dash, nil
}

func (s *Service) daily(ctx context.Context, path string) (*DailyReport, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	report, err := api.Decode[DailyReport](env)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
