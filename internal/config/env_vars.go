package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	envVar       = "TKT_ENV"
	baseURLVar   = "TKT_BASE_URL"
	timeoutVar   = "TKT_TIMEOUT_SECONDS"
	logLevelVar  = "TKT_LOG_LEVEL"
	defaultLimit = 30
)

// Built-in environment profiles, matching the mobile app's development and
// production targets.
var profiles = map[string]struct {
	baseURL  string
	logLevel zerolog.Level
}{
	"development": {baseURL: "http://localhost:8080/api", logLevel: zerolog.DebugLevel},
	"production":  {baseURL: "https://tkt-backend-186443551052.asia-south1.run.app/api", logLevel: zerolog.ErrorLevel},
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "development")
}

func (e EnvVars) GetBaseURL() string {
	if url := os.Getenv(baseURLVar); url != "" {
		return url
	}
	return e.profile().baseURL
}

func (EnvVars) GetTimeout() time.Duration {
	seconds, err := strconv.Atoi(GetEnv(timeoutVar, ""))
	if err != nil || seconds <= 0 {
		seconds = defaultLimit
	}
	return time.Duration(seconds) * time.Second
}

func (e EnvVars) GetLogLevel() zerolog.Level {
	if raw := os.Getenv(logLevelVar); raw != "" {
		if level, err := zerolog.ParseLevel(raw); err == nil {
			return level
		}
	}
	return e.profile().logLevel
}

func (e EnvVars) profile() struct {
	baseURL  string
	logLevel zerolog.Level
} {
	if p, ok := profiles[e.GetEnv()]; ok {
		return p
	}
	return profiles["development"]
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
