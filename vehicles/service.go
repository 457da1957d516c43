// Package vehicles provides the typed vehicle registry operations.
package vehicles

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/transport"
)

// VehicleType distinguishes cars from bikes in arrival stats.
type VehicleType string

const (
	TypeCar  VehicleType = "CAR"
	TypeBike VehicleType = "BIKE"
)

// Vehicle is a registered vehicle as returned by the backend.
type Vehicle struct {
	ID              int64       `json:"id"`
	OwnerName       string      `json:"ownerName"`
	OwnerMobile     string      `json:"ownerMobile"`
	VehicleNumber   string      `json:"vehicleNumber"`
	VehicleType     VehicleType `json:"vehicleType"`
	CarImageURL     string      `json:"carImageUrl"`
	KeyImageURL     string      `json:"keyImageUrl"`
	CreatedByID     int64       `json:"createdById"`
	CreatedByMobile string      `json:"createdByMobile"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Image is an opaque photo produced by the caller (camera or picker).
type Image struct {
	Name        string
	ContentType string
	Content     []byte
}

// RegistrationInput carries the multipart fields for registering or
// updating a vehicle. Images are optional.
type RegistrationInput struct {
	OwnerName     string
	OwnerMobile   string
	VehicleNumber string
	VehicleType   VehicleType
	CarImage      *Image
	KeyImage      *Image
}

// Service issues vehicle calls through the authenticated pipeline.
type Service struct {
	sender transport.Sender
}

// New creates a vehicle service over the given sender.
func New(sender transport.Sender) *Service {
	return &Service{sender: sender}
}

// GetAll lists every registered vehicle.
func (s *Service) GetAll(ctx context.Context) ([]Vehicle, error) {
	return s.list(ctx, &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
}

// Search finds vehicles matching a free-text query.
func (s *Service) Search(ctx context.Context, query string) ([]Vehicle, error) {
	return s.list(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/vehicles/search",
		Query:  url.Values{"query": {query}},
	})
}

// GetByNumber looks up a single vehicle by its registration number.
func (s *Service) GetByNumber(ctx context.Context, vehicleNumber string) (*Vehicle, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/vehicles/by-number/" + url.PathEscape(vehicleNumber),
	})
	if err != nil {
		return nil, err
	}
	return decodeVehicle(resp.Body)
}

// Register creates a vehicle from a multipart form with optional photos.
func (s *Service) Register(ctx context.Context, input RegistrationInput) (*Vehicle, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/vehicles",
		Form:   input.form(),
	})
	if err != nil {
		return nil, err
	}
	return decodeVehicle(resp.Body)
}

// Update replaces a vehicle's details, same shape as Register.
func (s *Service) Update(ctx context.Context, vehicleID int64, input RegistrationInput) (*Vehicle, error) {
	resp, err := s.sender.Send(ctx, &transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/vehicles/%d", vehicleID),
		Form:   input.form(),
	})
	if err != nil {
		return nil, err
	}
	return decodeVehicle(resp.Body)
}

func (s *Service) list(ctx context.Context, req *transport.Request) ([]Vehicle, error) {
	resp, err := s.sender.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	env, err := api.ParseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	return api.Decode[[]Vehicle](env)
}

func decodeVehicle(body []byte) (*Vehicle, error) {
	env, err := api.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}
	v, err := api.Decode[Vehicle](env)
	if err != nil {
		return nil, errors.Wrap(err, "[vehicles.decodeVehicle]")
	}
	return &v, nil
}

func (in RegistrationInput) form() *transport.Form {
	form := &transport.Form{
		Fields: map[string]string{
			"ownerName":     in.OwnerName,
			"ownerMobile":   in.OwnerMobile,
			"vehicleNumber": in.VehicleNumber,
			"vehicleType":   string(in.VehicleType),
		},
	}
	if in.CarImage != nil {
		form.Files = append(form.Files, in.CarImage.file("carImage"))
	}
	if in.KeyImage != nil {
		form.Files = append(form.Files, in.KeyImage.file("keyImage"))
	}
	return form
}

func (img *Image) file(field string) transport.File {
	name := img.Name
	if name == "" {
		name = field + ".jpg"
	}
	return transport.File{
		Field:       field,
		Name:        name,
		ContentType: img.ContentType,
		Content:     img.Content,
	}
}
