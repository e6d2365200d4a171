package larkauth

import (
	"testing"
	"time"
)

func TestStampExpiry(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		accessTTL   int
		refreshTTL  int
		wantExpires time.Time
		wantRefresh time.Time
	}{
		{
			name:        "provider TTLs",
			accessTTL:   100,
			refreshTTL:  200,
			wantExpires: issued.Add(100 * time.Second),
			wantRefresh: issued.Add(200 * time.Second),
		},
		{
			name:        "zero TTLs fall back to defaults",
			accessTTL:   0,
			refreshTTL:  0,
			wantExpires: issued.Add(DefaultAccessTokenTTL * time.Second),
			wantRefresh: issued.Add(DefaultRefreshTokenTTL * time.Second),
		},
		{
			name:        "negative TTLs fall back to defaults",
			accessTTL:   -5,
			refreshTTL:  -5,
			wantExpires: issued.Add(DefaultAccessTokenTTL * time.Second),
			wantRefresh: issued.Add(DefaultRefreshTokenTTL * time.Second),
		},
		{
			name:        "mixed",
			accessTTL:   3600,
			refreshTTL:  0,
			wantExpires: issued.Add(time.Hour),
			wantRefresh: issued.Add(DefaultRefreshTokenTTL * time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StampExpiry(issued, tt.accessTTL, tt.refreshTTL)
			if !got.ExpiresAt.Equal(tt.wantExpires) {
				t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, tt.wantExpires)
			}
			if !got.RefreshExpiresAt.Equal(tt.wantRefresh) {
				t.Errorf("RefreshExpiresAt = %v, want %v", got.RefreshExpiresAt, tt.wantRefresh)
			}
		})
	}
}

func TestTokenSetStamp(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := &TokenSet{AccessToken: "at", ExpiresIn: 60, RefreshExpiresIn: 120}

	got := ts.Stamp(issued)
	if !got.ExpiresAt.Equal(issued.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, issued.Add(time.Minute))
	}
	if !got.RefreshExpiresAt.Equal(issued.Add(2 * time.Minute)) {
		t.Errorf("RefreshExpiresAt = %v, want %v", got.RefreshExpiresAt, issued.Add(2*time.Minute))
	}
}

func TestTokenTypeOrDefault(t *testing.T) {
	if got := (&TokenSet{}).TokenTypeOrDefault(); got != "Bearer" {
		t.Errorf("TokenTypeOrDefault() = %q, want %q", got, "Bearer")
	}
	if got := (&TokenSet{TokenType: "mac"}).TokenTypeOrDefault(); got != "mac" {
		t.Errorf("TokenTypeOrDefault() = %q, want %q", got, "mac")
	}
}

func TestAuthRecordOAuth2Token(t *testing.T) {
	expires := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	refreshExpires := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	rec := &AuthRecord{
		UserID:           "u1",
		AccessToken:      "at",
		TokenType:        "Bearer",
		RefreshToken:     "rt",
		ExpiresAt:        expires,
		RefreshExpiresAt: refreshExpires,
	}

	tok := rec.OAuth2Token()
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" || tok.TokenType != "Bearer" {
		t.Errorf("unexpected token fields: %+v", tok)
	}
	if !tok.Expiry.Equal(expires) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, expires)
	}
	extra, ok := tok.Extra("refresh_expires_at").(time.Time)
	if !ok || !extra.Equal(refreshExpires) {
		t.Errorf("Extra(refresh_expires_at) = %v, want %v", tok.Extra("refresh_expires_at"), refreshExpires)
	}
}
