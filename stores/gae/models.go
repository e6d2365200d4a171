//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	la "github.com/panyam/larkauth"
)

// Kind constants for Datastore entities
const (
	KindUser       = "LarkUser"
	KindAuthRecord = "LarkAuthRecord"
	KindOpenID     = "LarkOpenID"
)

// UserEntity is the Datastore entity for users. The key name is the local
// user id.
type UserEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Name      string         `datastore:"name,noindex"`
	Email     string         `datastore:"email,noindex"`
	OpenID    string         `datastore:"open_id"`
	UnionID   string         `datastore:"union_id"`
	AvatarURL string         `datastore:"avatar_url,noindex"`
	CreatedAt time.Time      `datastore:"created_at"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *la.User {
	return &la.User{
		ID:        e.Key.Name,
		Name:      e.Name,
		Email:     e.Email,
		OpenID:    e.OpenID,
		UnionID:   e.UnionID,
		AvatarURL: e.AvatarURL,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func UserToEntity(u *la.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:       key,
		Name:      u.Name,
		Email:     u.Email,
		OpenID:    u.OpenID,
		UnionID:   u.UnionID,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuthRecordEntity is the Datastore entity for auth records. The key name
// is the owning user id, so each login replaces the single record.
type AuthRecordEntity struct {
	Key              *datastore.Key `datastore:"__key__"`
	AccessToken      string         `datastore:"access_token,noindex"`
	TokenType        string         `datastore:"token_type,noindex"`
	RefreshToken     string         `datastore:"refresh_token,noindex"`
	ExpiresAt        time.Time      `datastore:"expires_at"`
	RefreshExpiresAt time.Time      `datastore:"refresh_expires_at"`
}

func (e *AuthRecordEntity) ToAuthRecord() *la.AuthRecord {
	return &la.AuthRecord{
		UserID:           e.Key.Name,
		AccessToken:      e.AccessToken,
		TokenType:        e.TokenType,
		RefreshToken:     e.RefreshToken,
		ExpiresAt:        e.ExpiresAt,
		RefreshExpiresAt: e.RefreshExpiresAt,
	}
}

func AuthRecordToEntity(a *la.AuthRecord, key *datastore.Key) *AuthRecordEntity {
	return &AuthRecordEntity{
		Key:              key,
		AccessToken:      a.AccessToken,
		TokenType:        a.TokenType,
		RefreshToken:     a.RefreshToken,
		ExpiresAt:        a.ExpiresAt,
		RefreshExpiresAt: a.RefreshExpiresAt,
	}
}

// OpenIDEntity maps a Lark open id to a local user id. The key name is the
// open id, which makes FindByOpenID a single Get and lets a transaction
// enforce the one-user-per-open-id invariant.
type OpenIDEntity struct {
	Key    *datastore.Key `datastore:"__key__"`
	UserID string         `datastore:"user_id"`
}
