package config

import (
	"os"
	"path/filepath"
)

type Vault struct{}

var _ VaultConfig = Vault{}

func (Vault) GetVaultPath() string {
	if path := os.Getenv("TKT_VAULT_PATH"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tkt-vault.json"
	}
	return filepath.Join(home, ".tkt", "vault.json")
}

func (Vault) GetVaultPassphrase() string {
	return GetEnv("TKT_VAULT_PASSPHRASE", "")
}
