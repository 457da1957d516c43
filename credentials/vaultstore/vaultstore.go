// Package vaultstore is a file-backed credential store that seals each value
// with a key derived from a device passphrase. It stands in for the platform
// keychain the mobile client would use.
package vaultstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/tktapps/arrivals-client/credentials"
)

var _ credentials.Store = (*VaultStore)(nil)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32

	// scrypt parameters, interactive-login strength
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

type vaultFile struct {
	Salt    string            `json:"salt"`
	Secrets map[string]string `json:"secrets"`
}

// VaultStore persists sealed secrets in a single JSON file. Operations are
// atomic per key: the whole file is rewritten via rename on every change.
type VaultStore struct {
	path string
	key  [keyLength]byte
	lock sync.Mutex
}

// Open loads or creates the vault at path, deriving the sealing key from
// passphrase.
func Open(path, passphrase string) (*VaultStore, error) {
	vf, err := readVaultFile(path)
	if err != nil {
		return nil, err
	}

	if vf.Salt == "" {
		salt := make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, errors.Wrap(err, "[vaultstore.Open] generate salt")
		}
		vf.Salt = base64.StdEncoding.EncodeToString(salt)
		if err := writeVaultFile(path, vf); err != nil {
			return nil, err
		}
	}

	salt, err := base64.StdEncoding.DecodeString(vf.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "[vaultstore.Open] decode salt")
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, errors.Wrap(err, "[vaultstore.Open] derive key")
	}

	vs := &VaultStore{path: path}
	copy(vs.key[:], derived)
	return vs, nil
}

func (vs *VaultStore) Get(key string) (string, error) {
	vs.lock.Lock()
	defer vs.lock.Unlock()

	vf, err := readVaultFile(vs.path)
	if err != nil {
		return "", err
	}
	sealed, ok := vf.Secrets[key]
	if !ok {
		return "", credentials.ErrNotFound
	}
	return vs.open(sealed)
}

func (vs *VaultStore) Set(key, value string) error {
	vs.lock.Lock()
	defer vs.lock.Unlock()

	vf, err := readVaultFile(vs.path)
	if err != nil {
		return err
	}
	sealed, err := vs.seal(value)
	if err != nil {
		return err
	}
	vf.Secrets[key] = sealed
	return writeVaultFile(vs.path, vf)
}

func (vs *VaultStore) Delete(key string) error {
	vs.lock.Lock()
	defer vs.lock.Unlock()

	vf, err := readVaultFile(vs.path)
	if err != nil {
		return err
	}
	if _, ok := vf.Secrets[key]; !ok {
		return nil
	}
	delete(vf.Secrets, key)
	return writeVaultFile(vs.path, vf)
}

func (vs *VaultStore) seal(value string) (string, error) {
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", errors.Wrap(err, "[VaultStore.seal] generate nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &vs.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (vs *VaultStore) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Wrap(err, "[VaultStore.open] decode")
	}
	if len(raw) < nonceLength {
		return "", errors.New("[VaultStore.open] sealed value too short")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], raw[:nonceLength])
	plain, ok := secretbox.Open(nil, raw[nonceLength:], &nonce, &vs.key)
	if !ok {
		return "", errors.New("[VaultStore.open] decryption failed")
	}
	return string(plain), nil
}

func readVaultFile(path string) (*vaultFile, error) {
	vf := &vaultFile{Secrets: make(map[string]string)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return vf, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[vaultstore.readVaultFile] read")
	}
	if err := json.Unmarshal(data, vf); err != nil {
		return nil, errors.Wrap(err, "[vaultstore.readVaultFile] unmarshal")
	}
	if vf.Secrets == nil {
		vf.Secrets = make(map[string]string)
	}
	return vf, nil
}

func writeVaultFile(path string, vf *vaultFile) error {
	data, err := json.Marshal(vf)
	if err != nil {
		return errors.Wrap(err, "[vaultstore.writeVaultFile] marshal")
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "[vaultstore.writeVaultFile] mkdir")
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[vaultstore.writeVaultFile] write")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "[vaultstore.writeVaultFile] rename")
	}
	return nil
}
