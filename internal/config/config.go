// Package config selects the client's environment profile: base URL,
// request timeout, and log level, overridable through environment variables.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config interface {
	EnvConfig
	VaultConfig
}

type EnvConfig interface {
	GetEnv() string
	GetBaseURL() string
	GetTimeout() time.Duration
	GetLogLevel() zerolog.Level
}

type VaultConfig interface {
	GetVaultPath() string
	GetVaultPassphrase() string
}

type mainConfig struct {
	EnvVars
	Vault
}

func New() Config {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()
	return mainConfig{}
}
