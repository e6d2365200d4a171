package larkauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Default Lark API hosts. AuthBaseURL serves the authorize page; BaseURL
// serves everything else.
const (
	DefaultLarkBaseURL     = "https://open.larksuite.com/open-apis"
	DefaultLarkAuthBaseURL = "https://accounts.larksuite.com/open-apis"
)

// ProviderError is a structured rejection from Lark: the call reached the
// API but the response envelope carried a non-zero code. This is distinct
// from a transport failure even when the HTTP status was 200.
type ProviderError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("lark error %d: %s", e.Code, e.Msg)
}

// LarkClient wraps the outbound calls to Lark: app token, code exchange,
// token refresh and profile fetch. Every response envelope is checked for
// code == 0 independent of the transport status.
type LarkClient struct {
	AppID     string
	AppSecret string

	// BaseURL is the API host. Defaults to DefaultLarkBaseURL. Can be
	// overridden for testing.
	BaseURL string

	// AuthBaseURL is the host serving the authorize page. Defaults to
	// DefaultLarkAuthBaseURL.
	AuthBaseURL string

	// HTTPClient is the client used for all calls. Defaults to a client
	// with a 10 second timeout.
	HTTPClient *http.Client

	// CacheAppToken enables reuse of the app access token until shortly
	// before its provider-stated TTL elapses. Correctness never depends on
	// this - a stale miss just costs one extra round trip.
	CacheAppToken bool

	mu             sync.Mutex
	cachedAppToken string
	appTokenExpiry time.Time
}

// NewLarkClient builds a client, falling back to LARK_APP_ID and
// LARK_APP_SECRET env vars when args are empty.
func NewLarkClient(appID, appSecret string) *LarkClient {
	if appID == "" {
		appID = strings.TrimSpace(os.Getenv("LARK_APP_ID"))
	}
	if appSecret == "" {
		appSecret = strings.TrimSpace(os.Getenv("LARK_APP_SECRET"))
	}
	return &LarkClient{
		AppID:       appID,
		AppSecret:   appSecret,
		BaseURL:     DefaultLarkBaseURL,
		AuthBaseURL: DefaultLarkAuthBaseURL,
	}
}

func (c *LarkClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *LarkClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultLarkBaseURL
}

// envelope is the JSON wrapper Lark puts around every response.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// appTokenResponse carries the app token at the top level rather than
// under data, unlike every other Lark endpoint.
type appTokenResponse struct {
	Code           int    `json:"code"`
	Msg            string `json:"msg"`
	AppAccessToken string `json:"app_access_token"`
	Expire         int    `json:"expire"`
}

// AppAccessToken obtains an application-level token using the static app
// credentials. It is required as a bearer for the code exchange and
// refresh calls.
func (c *LarkClient) AppAccessToken(ctx context.Context) (string, error) {
	if c.CacheAppToken {
		c.mu.Lock()
		if c.cachedAppToken != "" && time.Now().Before(c.appTokenExpiry) {
			tok := c.cachedAppToken
			c.mu.Unlock()
			return tok, nil
		}
		c.mu.Unlock()
	}

	body, err := c.post(ctx, "/auth/v3/app_access_token/internal", "", map[string]any{
		"app_id":     c.AppID,
		"app_secret": c.AppSecret,
	})
	if err != nil {
		return "", err
	}

	var resp appTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", WrapError(KindUnavailable, "failed to decode app token response", err)
	}
	if resp.Code != 0 {
		slog.Error("failed to get app access token", "code", resp.Code, "msg", resp.Msg)
		return "", WrapError(KindUnauthorized, "failed to get app access token", &ProviderError{Code: resp.Code, Msg: resp.Msg})
	}

	if c.CacheAppToken && resp.Expire > 0 {
		c.mu.Lock()
		c.cachedAppToken = resp.AppAccessToken
		// refresh a minute early so we never hand out a token about to die
		c.appTokenExpiry = time.Now().Add(time.Duration(resp.Expire-60) * time.Second)
		c.mu.Unlock()
	}
	return resp.AppAccessToken, nil
}

// ExchangeCode exchanges a one-time authorization code for a user token
// pair. Codes are single-use by provider contract so rejections surface
// immediately and are never retried.
func (c *LarkClient) ExchangeCode(ctx context.Context, code, appToken string) (*TokenSet, error) {
	body, err := c.post(ctx, "/authen/v1/oidc/access_token", appToken, map[string]any{
		"grant_type": "authorization_code",
		"code":       code,
	})
	if err != nil {
		return nil, err
	}
	return c.decodeTokenSet(body, "user access token")
}

// RefreshAccessToken exchanges a refresh token for a new token pair.
func (c *LarkClient) RefreshAccessToken(ctx context.Context, refreshToken, appToken string) (*TokenSet, error) {
	body, err := c.post(ctx, "/authen/v1/oidc/refresh_access_token", appToken, map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	return c.decodeTokenSet(body, "refreshed token")
}

// UserInfo fetches the authenticated user's profile using a user access
// token.
func (c *LarkClient) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/authen/v1/user_info", nil)
	if err != nil {
		return nil, WrapError(KindInternal, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	env, err := c.decodeEnvelope(body, "user info")
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		return nil, WrapError(KindUnavailable, "failed to decode user info", err)
	}
	return &profile, nil
}

func (c *LarkClient) decodeTokenSet(body []byte, what string) (*TokenSet, error) {
	env, err := c.decodeEnvelope(body, what)
	if err != nil {
		return nil, err
	}
	var tokens TokenSet
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		return nil, WrapError(KindUnavailable, "failed to decode "+what, err)
	}
	return &tokens, nil
}

func (c *LarkClient) decodeEnvelope(body []byte, what string) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, WrapError(KindUnavailable, "failed to decode "+what+" response", err)
	}
	if env.Code != 0 {
		slog.Error("lark rejected request", "what", what, "code", env.Code, "msg", env.Msg)
		return nil, WrapError(KindUnauthorized, "failed to get "+what, &ProviderError{Code: env.Code, Msg: env.Msg})
	}
	return &env, nil
}

func (c *LarkClient) post(ctx context.Context, path, bearer string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(KindInternal, "failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(data))
	if err != nil {
		return nil, WrapError(KindInternal, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req)
}

func (c *LarkClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		slog.Error("lark call failed", "url", req.URL.Path, "err", err)
		return nil, WrapError(KindUnavailable, "failed to communicate with lark", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(KindUnavailable, "failed to read lark response", err)
	}
	// Lark reports structured failures inside 200 bodies. A non-2xx with a
	// decodable envelope still carries the real reason, so only treat the
	// status as fatal when the body is not an envelope.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		if json.Unmarshal(body, &env) != nil || env.Code == 0 {
			return nil, NewError(KindUnavailable, fmt.Sprintf("lark returned status %d", resp.StatusCode))
		}
	}
	return body, nil
}
