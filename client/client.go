package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// RefreshThreshold is how long before expiry to proactively refresh
const RefreshThreshold = 5 * time.Minute

// AuthClient is an HTTP client for a larkauth server with automatic token
// management. The initial credential comes from a browser login (the
// callback hands the tokens to the app); after that the client keeps the
// access token fresh through the server's refresh endpoint.
type AuthClient struct {
	mu              sync.Mutex
	serverURL       string
	store           CredentialStore
	httpClient      *http.Client
	baseTransport   http.RoundTripper
	refreshEndpoint string // e.g., "/auth/refresh"
}

// RefreshRequest is the request body for the refresh endpoint
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the response from the refresh endpoint
type RefreshResponse struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Detail           string    `json:"detail,omitempty"` // error message on failure
}

// UserResponse is the composed user+auth payload from GET /user/{id}
type UserResponse struct {
	User struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email,omitempty"`
		OpenID    string    `json:"open_id"`
		UnionID   string    `json:"union_id"`
		AvatarURL string    `json:"avatar_url,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"user"`
	Auth struct {
		AccessToken      string    `json:"access_token"`
		TokenType        string    `json:"token_type"`
		RefreshToken     string    `json:"refresh_token"`
		ExpiresAt        time.Time `json:"expires_at"`
		RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	} `json:"auth"`
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithRefreshEndpoint sets a custom refresh endpoint path
func WithRefreshEndpoint(path string) ClientOption {
	return func(c *AuthClient) {
		c.refreshEndpoint = path
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client != nil && client.Transport != nil {
			c.baseTransport = client.Transport
		}
		if client != nil {
			c.httpClient.Timeout = client.Timeout
			c.httpClient.CheckRedirect = client.CheckRedirect
			c.httpClient.Jar = client.Jar
		}
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// NewAuthClient creates a new authenticated HTTP client for a server
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	// Normalize server URL
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		serverURL:       serverURL,
		store:           store,
		httpClient:      &http.Client{},
		baseTransport:   http.DefaultTransport,
		refreshEndpoint: "/auth/refresh",
	}

	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &refreshTransport{
		client: c,
		base:   c.baseTransport,
	}

	return c
}

// HTTPClient returns the underlying HTTP client with auth handling
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// SetCredential seeds the client with a credential obtained out of band,
// typically from a completed browser login.
func (c *AuthClient) SetCredential(cred *ServerCredential) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return err
	}
	return c.store.Save()
}

// GetToken returns the current access token, refreshing if needed
func (c *AuthClient) GetToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}

	if cred.IsExpiringSoon(RefreshThreshold) && cred.HasRefreshToken() {
		if err := c.refreshLocked(cred); err != nil {
			// If refresh fails but token isn't actually expired yet, use it anyway
			if !cred.IsExpired() {
				return cred.AccessToken, nil
			}
			return "", fmt.Errorf("token expired and refresh failed: %w", err)
		}
		cred, _ = c.store.GetCredential(c.serverURL)
	}

	if cred == nil || cred.IsExpired() {
		return "", nil
	}
	return cred.AccessToken, nil
}

// GetCredential returns the stored credential for this server
func (c *AuthClient) GetCredential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

// IsLoggedIn returns true if there is a valid (non-expired) credential
func (c *AuthClient) IsLoggedIn() bool {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil {
		return false
	}
	return !cred.IsExpired()
}

// Logout removes the credential for this server
func (c *AuthClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	return c.store.Save()
}

// Refresh forces a refresh of the stored credential.
func (c *AuthClient) Refresh() (*ServerCredential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil {
		return nil, err
	}
	if cred == nil || !cred.HasRefreshToken() {
		return nil, fmt.Errorf("no refresh token available")
	}
	if err := c.refreshLocked(cred); err != nil {
		return nil, err
	}
	return c.store.GetCredential(c.serverURL)
}

// GetUser fetches the composed user and auth record for a user id.
func (c *AuthClient) GetUser(userID string) (*UserResponse, error) {
	resp, err := c.httpClient.Get(c.serverURL + "/user/" + url.PathEscape(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get user failed: HTTP %d", resp.StatusCode)
	}

	var user UserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	return &user, nil
}

// refreshLocked exchanges the refresh token for a new pair.
// Caller must hold c.mu.
func (c *AuthClient) refreshLocked(cred *ServerCredential) error {
	refreshURL := c.serverURL + c.refreshEndpoint

	jsonBody, err := json.Marshal(RefreshRequest{RefreshToken: cred.RefreshToken})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	// Use base transport directly to avoid auth loop
	httpClient := &http.Client{Transport: c.baseTransport}
	resp, err := httpClient.Post(refreshURL, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var refreshResp RefreshResponse
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if refreshResp.Detail != "" {
			return fmt.Errorf("refresh failed: %s", refreshResp.Detail)
		}
		return fmt.Errorf("refresh failed: HTTP %d", resp.StatusCode)
	}

	newCred := &ServerCredential{
		AccessToken:      refreshResp.AccessToken,
		TokenType:        refreshResp.TokenType,
		RefreshToken:     refreshResp.RefreshToken,
		UserID:           cred.UserID,
		ExpiresAt:        refreshResp.ExpiresAt,
		RefreshExpiresAt: refreshResp.RefreshExpiresAt,
		CreatedAt:        time.Now(),
	}
	// Use new refresh token if provided, otherwise keep the old one
	if newCred.RefreshToken == "" {
		newCred.RefreshToken = cred.RefreshToken
		newCred.RefreshExpiresAt = cred.RefreshExpiresAt
	}

	if err := c.store.SetCredential(c.serverURL, newCred); err != nil {
		return fmt.Errorf("failed to store refreshed credential: %w", err)
	}
	return c.store.Save()
}
