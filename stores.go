package larkauth

import "time"

// User is a local account reconciled from a Lark identity. ID is generated
// once at creation and never reused or changed; OpenID is unique across
// users.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	OpenID    string    `json:"open_id"`
	UnionID   string    `json:"union_id"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthRecord holds the most recent token pair for a user. There is exactly
// one per user - a new login or refresh replaces it wholesale, no history
// is kept. Expiries are absolute timestamps (issued_at + provider TTL), so
// consumers never need to know issuance time separately.
type AuthRecord struct {
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// IsExpired returns true if the access token expiry has passed.
func (a *AuthRecord) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

// CanRefresh returns true if the refresh token is still usable.
func (a *AuthRecord) CanRefresh() bool {
	return a.RefreshToken != "" && time.Now().Before(a.RefreshExpiresAt)
}

// Profile is the identity information Lark returns for an authenticated
// user. OpenID, UnionID and Name are required; Email and AvatarURL are
// optional.
type Profile struct {
	OpenID    string `json:"open_id"`
	UnionID   string `json:"union_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserStore persists users and their auth records. Implementations must be
// safe under concurrent use and must serialize PutAuth calls for the same
// user so the last writer wins with no torn record.
//
// Lookup misses return a typed error with KindNotFound.
type UserStore interface {
	// FindByOpenID returns the user owning the given Lark open id.
	FindByOpenID(openID string) (*User, error)

	// Upsert creates or updates the user for profile.OpenID. On update only
	// Name, Email, AvatarURL and UpdatedAt change - ID, OpenID, UnionID and
	// CreatedAt are preserved. On create a fresh ID is generated.
	Upsert(profile *Profile) (*User, error)

	// PutAuth replaces the stored auth record for userID wholesale.
	PutAuth(userID string, auth *AuthRecord) error

	// GetUser retrieves a user by local id.
	GetUser(userID string) (*User, error)

	// GetAuth retrieves the auth record for a user.
	GetAuth(userID string) (*AuthRecord, error)
}
