package larkauth

import (
	"time"

	"golang.org/x/oauth2"
)

// TTLs Lark applies when a token response omits them.
const (
	DefaultAccessTokenTTL  = 7200    // 2 hours, in seconds
	DefaultRefreshTokenTTL = 2592000 // 30 days, in seconds
)

// TokenSet is a raw token pair as returned by Lark, before expiry stamping.
// TTLs are in seconds relative to issuance.
type TokenSet struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

// Expiry holds the absolute expiry timestamps for a token pair.
type Expiry struct {
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// StampExpiry converts provider-reported TTLs into absolute timestamps
// anchored at issuedAt. Zero or negative TTLs fall back to the defaults.
// All time arithmetic for the login and refresh flows lives here so the
// flows themselves never manipulate durations.
func StampExpiry(issuedAt time.Time, accessTTL, refreshTTL int) Expiry {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return Expiry{
		ExpiresAt:        issuedAt.Add(time.Duration(accessTTL) * time.Second),
		RefreshExpiresAt: issuedAt.Add(time.Duration(refreshTTL) * time.Second),
	}
}

// Stamp applies StampExpiry to this token set.
func (ts *TokenSet) Stamp(issuedAt time.Time) Expiry {
	return StampExpiry(issuedAt, ts.ExpiresIn, ts.RefreshExpiresIn)
}

// TokenTypeOrDefault returns the token type, defaulting to "Bearer".
func (ts *TokenSet) TokenTypeOrDefault() string {
	if ts.TokenType == "" {
		return "Bearer"
	}
	return ts.TokenType
}

// OAuth2Token converts an auth record into an *oauth2.Token so it can be
// handed to x/oauth2-based API clients. The refresh expiry travels in the
// token extras under "refresh_expires_at".
func (a *AuthRecord) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  a.AccessToken,
		TokenType:    a.TokenType,
		RefreshToken: a.RefreshToken,
		Expiry:       a.ExpiresAt,
	}
	return tok.WithExtra(map[string]any{
		"refresh_expires_at": a.RefreshExpiresAt,
	})
}
