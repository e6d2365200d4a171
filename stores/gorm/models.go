//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	la "github.com/panyam/larkauth"
)

// UserModel is the GORM model for users. OpenID carries a unique index so
// the one-user-per-open-id invariant is enforced by the database as well.
type UserModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:255"`
	Email     string    `gorm:"size:255"`
	OpenID    string    `gorm:"size:128;uniqueIndex"`
	UnionID   string    `gorm:"size:128;index"`
	AvatarURL string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *la.User {
	return &la.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		OpenID:    m.OpenID,
		UnionID:   m.UnionID,
		AvatarURL: m.AvatarURL,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func UserToModel(u *la.User) *UserModel {
	return &UserModel{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		OpenID:    u.OpenID,
		UnionID:   u.UnionID,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuthRecordModel is the GORM model for auth records. UserID is the
// primary key: there is exactly one row per user and each login or refresh
// replaces it wholesale.
type AuthRecordModel struct {
	UserID           string `gorm:"primaryKey;size:64"`
	AccessToken      string `gorm:"size:512"`
	TokenType        string `gorm:"size:32"`
	RefreshToken     string `gorm:"size:512"`
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

func (AuthRecordModel) TableName() string {
	return "auth_records"
}

func (m *AuthRecordModel) ToAuthRecord() *la.AuthRecord {
	return &la.AuthRecord{
		UserID:           m.UserID,
		AccessToken:      m.AccessToken,
		TokenType:        m.TokenType,
		RefreshToken:     m.RefreshToken,
		ExpiresAt:        m.ExpiresAt,
		RefreshExpiresAt: m.RefreshExpiresAt,
	}
}

func AuthRecordToModel(a *la.AuthRecord) *AuthRecordModel {
	return &AuthRecordModel{
		UserID:           a.UserID,
		AccessToken:      a.AccessToken,
		TokenType:        a.TokenType,
		RefreshToken:     a.RefreshToken,
		ExpiresAt:        a.ExpiresAt,
		RefreshExpiresAt: a.RefreshExpiresAt,
	}
}
