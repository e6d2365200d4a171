package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// memCredStore is an in-memory CredentialStore for tests.
type memCredStore struct {
	mu    sync.Mutex
	creds map[string]*ServerCredential
	saves int
}

func newMemCredStore() *memCredStore {
	return &memCredStore{creds: map[string]*ServerCredential{}}
}

func (s *memCredStore) GetCredential(serverURL string) (*ServerCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds[serverURL], nil
}

func (s *memCredStore) SetCredential(serverURL string, cred *ServerCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[serverURL] = cred
	return nil
}

func (s *memCredStore) RemoveCredential(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, serverURL)
	return nil
}

func (s *memCredStore) ListServers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.creds))
	for k := range s.creds {
		out = append(out, k)
	}
	return out, nil
}

func (s *memCredStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

// newAuthServer serves the refresh and user endpoints the way a larkauth
// server renders them.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "good-refresh" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Failed to refresh token"})
			return
		}
		json.NewEncoder(w).Encode(RefreshResponse{
			AccessToken:      "new-access",
			TokenType:        "Bearer",
			RefreshToken:     "new-refresh",
			ExpiresAt:        time.Now().Add(2 * time.Hour),
			RefreshExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		})
	})
	mux.HandleFunc("/user/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var resp UserResponse
		resp.User.ID = "u-123"
		resp.User.Name = "Alice"
		resp.User.OpenID = "o1"
		resp.User.UnionID = "u1"
		resp.Auth.AccessToken = "stored-access"
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestAuthClientRefresh(t *testing.T) {
	server := newAuthServer(t)
	store := newMemCredStore()
	c := NewAuthClient(server.URL, store)

	err := c.SetCredential(&ServerCredential{
		AccessToken:      "old-access",
		RefreshToken:     "good-refresh",
		UserID:           "u-123",
		ExpiresAt:        time.Now().Add(-time.Minute),
		RefreshExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SetCredential() error: %v", err)
	}

	cred, err := c.Refresh()
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if cred.AccessToken != "new-access" || cred.RefreshToken != "new-refresh" {
		t.Errorf("unexpected credential after refresh: %+v", cred)
	}
	if cred.UserID != "u-123" {
		t.Errorf("refresh lost the user id: %+v", cred)
	}
	if store.saves < 2 {
		t.Errorf("expected refreshed credential to be saved, saves = %d", store.saves)
	}
}

func TestAuthClientRefreshRejected(t *testing.T) {
	server := newAuthServer(t)
	store := newMemCredStore()
	c := NewAuthClient(server.URL, store)

	c.SetCredential(&ServerCredential{
		AccessToken:  "old-access",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	if _, err := c.Refresh(); err == nil {
		t.Fatal("expected error for rejected refresh token")
	}

	// The stored credential must survive a failed refresh.
	cred, _ := c.GetCredential()
	if cred == nil || cred.RefreshToken != "revoked" {
		t.Errorf("failed refresh mutated the credential: %+v", cred)
	}
}

func TestAuthClientGetTokenProactiveRefresh(t *testing.T) {
	server := newAuthServer(t)
	store := newMemCredStore()
	c := NewAuthClient(server.URL, store)

	// Inside the refresh threshold, with a usable refresh token.
	c.SetCredential(&ServerCredential{
		AccessToken:      "old-access",
		RefreshToken:     "good-refresh",
		ExpiresAt:        time.Now().Add(time.Minute),
		RefreshExpiresAt: time.Now().Add(time.Hour),
	})

	token, err := c.GetToken()
	if err != nil {
		t.Fatalf("GetToken() error: %v", err)
	}
	if token != "new-access" {
		t.Errorf("GetToken() = %q, want new-access", token)
	}
}

func TestAuthClientGetTokenNoCredential(t *testing.T) {
	c := NewAuthClient("https://auth.example.com", newMemCredStore())
	token, err := c.GetToken()
	if err != nil {
		t.Fatalf("GetToken() error: %v", err)
	}
	if token != "" {
		t.Errorf("GetToken() = %q, want empty", token)
	}
}

func TestAuthClientGetUser(t *testing.T) {
	server := newAuthServer(t)
	store := newMemCredStore()
	c := NewAuthClient(server.URL, store)

	c.SetCredential(&ServerCredential{
		AccessToken: "valid-access",
		ExpiresAt:   time.Now().Add(2 * time.Hour),
	})

	user, err := c.GetUser("u-123")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if user.User.ID != "u-123" || user.User.Name != "Alice" {
		t.Errorf("unexpected user: %+v", user.User)
	}
	if user.Auth.AccessToken != "stored-access" {
		t.Errorf("unexpected auth: %+v", user.Auth)
	}
}

func TestRefreshTransportRetriesOn401(t *testing.T) {
	var requests []string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, "refresh")
		json.NewEncoder(w).Encode(RefreshResponse{
			AccessToken:      "fresh-token",
			TokenType:        "Bearer",
			RefreshToken:     "fresh-refresh",
			ExpiresAt:        time.Now().Add(2 * time.Hour),
			RefreshExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		})
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, "data:"+r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := newMemCredStore()
	c := NewAuthClient(server.URL, store)
	c.SetCredential(&ServerCredential{
		AccessToken:      "stale-token",
		RefreshToken:     "good-refresh",
		ExpiresAt:        time.Now().Add(time.Hour), // not expiring; server revoked it anyway
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	})

	resp, err := c.HTTPClient().Get(server.URL + "/api/data")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after retry (requests: %v)", resp.StatusCode, requests)
	}

	cred, _ := c.GetCredential()
	if cred.AccessToken != "fresh-token" {
		t.Errorf("credential not updated after 401 refresh: %+v", cred)
	}
}

func TestAuthTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer static-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := &http.Client{Transport: NewAuthTransport("static-token")}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthClientLogout(t *testing.T) {
	store := newMemCredStore()
	c := NewAuthClient("https://auth.example.com", store)
	c.SetCredential(&ServerCredential{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	if !c.IsLoggedIn() {
		t.Fatal("expected logged in after SetCredential")
	}
	if err := c.Logout(); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if c.IsLoggedIn() {
		t.Error("still logged in after Logout")
	}
}
