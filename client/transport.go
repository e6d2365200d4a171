package client

import (
	"net/http"
)

// refreshTransport is an http.RoundTripper that attaches the current
// access token and retries once after a refresh when the server says 401.
type refreshTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Get current token (may trigger a proactive refresh)
	token, err := t.client.GetToken()
	if err != nil {
		return nil, err
	}

	if token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// One retry after a forced refresh; the server may have revoked the
	// pair server-side in which case the 401 stands.
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		t.client.mu.Lock()
		cred, _ := t.client.store.GetCredential(t.client.serverURL)
		var refreshed bool
		if cred != nil && cred.HasRefreshToken() {
			if refreshErr := t.client.refreshLocked(cred); refreshErr == nil {
				refreshed = true
			}
		}
		t.client.mu.Unlock()

		if refreshed {
			if newToken, err := t.client.GetToken(); err == nil && newToken != "" {
				resp.Body.Close()
				retry := req.Clone(req.Context())
				retry.Header.Set("Authorization", "Bearer "+newToken)
				return t.base.RoundTrip(retry)
			}
		}
	}

	return resp, nil
}

// AuthTransport wraps an http.RoundTripper to add a static bearer token,
// for callers that manage refresh themselves.
type AuthTransport struct {
	Base  http.RoundTripper
	Token string
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req2 := req.Clone(req.Context())
		req2.Header.Set("Authorization", "Bearer "+t.Token)
		req = req2
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewAuthTransport creates an AuthTransport with the given token
func NewAuthTransport(token string) *AuthTransport {
	return &AuthTransport{
		Base:  http.DefaultTransport,
		Token: token,
	}
}
