// Package arrivalsclient assembles the full attendance-tracker client: the
// secure credential store, the HTTP transport, the authenticated request
// pipeline, the session manager, and the typed domain services.
package arrivalsclient

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tktapps/arrivals-client/attendance"
	"github.com/tktapps/arrivals-client/authapi"
	"github.com/tktapps/arrivals-client/credentials"
	"github.com/tktapps/arrivals-client/pipeline"
	"github.com/tktapps/arrivals-client/reports"
	"github.com/tktapps/arrivals-client/session"
	"github.com/tktapps/arrivals-client/transport"
	"github.com/tktapps/arrivals-client/users"
	"github.com/tktapps/arrivals-client/vehicles"
)

// Client is the assembled SDK, constructed once per process.
type Client struct {
	Session    *session.Manager
	Vehicles   *vehicles.Service
	Attendance *attendance.Service
	Reports    *reports.Service
	Users      *users.Service
}

type clientSettings struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// ClientOption modifies the assembled client.
type ClientOption func(*clientSettings)

// WithTimeout overrides the transport's default request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(s *clientSettings) {
		s.timeout = d
	}
}

// WithLogger sets the logger shared by the transport, pipeline, and session
// manager.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(s *clientSettings) {
		s.logger = l
	}
}

// New wires the client against baseURL with credentials persisted in store.
// Auth calls go straight to the transport; every domain service goes through
// the authenticated pipeline.
func New(baseURL string, store credentials.Store, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[arrivalsclient.New] base URL is required")
	}
	if store == nil {
		return nil, errors.New("[arrivalsclient.New] credential store is required")
	}

	settings := clientSettings{
		timeout: transport.DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(&settings)
	}

	tr := transport.NewHTTPTransport(baseURL,
		transport.WithTimeout(settings.timeout),
		transport.WithLogger(settings.logger.With().Str("component", "transport").Logger()),
	)

	sessionManager, err := session.NewManager(authapi.New(tr), store,
		session.WithLogger(settings.logger.With().Str("component", "session").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[arrivalsclient.New] session manager")
	}

	authed, err := pipeline.New(tr, store, sessionManager,
		pipeline.WithLogger(settings.logger.With().Str("component", "pipeline").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[arrivalsclient.New] pipeline")
	}

	return &Client{
		Session:    sessionManager,
		Vehicles:   vehicles.New(authed),
		Attendance: attendance.New(authed),
		Reports:    reports.New(authed),
		Users:      users.New(authed),
	}, nil
}
