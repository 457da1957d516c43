// Package credentials defines the secure credential store contract and the
// persisted session types.
package credentials

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Storage keys for the persisted session. The session manager writes and
// clears them in this order so a crash mid-write never leaves the token pair
// half-present.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyTenantID     = "tenantId"
)

// ErrNotFound is returned by Store.Get when no value exists for the key.
var ErrNotFound = errors.New("credential not found")

// Store persists a small set of named secrets. Operations are atomic per
// key; no cross-key transaction is guaranteed.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Role is the access level issued with a user profile.
type Role string

const (
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

// UserProfile is the identity issued by the server on login. It is replaced
// wholesale on login and refresh, never mutated.
type UserProfile struct {
	ID           int64  `json:"id"`
	MobileNumber string `json:"mobileNumber"`
	Role         Role   `json:"role"`
}

// EncodeProfile serializes a profile for storage under KeyUser.
func EncodeProfile(p UserProfile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "[EncodeProfile] marshal")
	}
	return string(data), nil
}

// DecodeProfile deserializes a profile read from KeyUser.
func DecodeProfile(value string) (UserProfile, error) {
	var p UserProfile
	if err := json.Unmarshal([]byte(value), &p); err != nil {
		return p, errors.Wrap(err, "[DecodeProfile] unmarshal")
	}
	return p, nil
}

// Credentials is a complete authenticated session. AccessToken and
// RefreshToken are either both present or both absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         UserProfile
	TenantID     string
}
