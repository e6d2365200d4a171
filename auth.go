package larkauth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

// OnAuthUserFunc is invoked after a successful login with the reconciled
// user and their provider tokens, before the callback handler redirects.
type OnAuthUserFunc func(user *User, token *oauth2.Token, w http.ResponseWriter, r *http.Request)

// LarkAuth orchestrates the Lark login and refresh flows: provider round
// trips, expiry stamping and user reconciliation. It holds no per-call
// state, so a single instance serves arbitrary concurrent requests.
type LarkAuth struct {
	router     *mux.Router
	Session    *scs.SessionManager
	Middleware Middleware

	// Must be passed in
	Client *LarkClient
	Store  UserStore

	// RedirectURI is the registered OAuth callback URL.
	RedirectURI string

	// SuccessURL is where the callback sends the browser after login.
	// Defaults to /static/login-success.html. The new user's id is appended
	// as ?userId=.
	SuccessURL string

	// Optional name used as a prefix for session/cookie vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	// All the domains where auth cookies are set on login and cleared on logout
	CookieDomains []string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long a session cookie is valid for. Defaults to 1 day.
	SessionTimeoutInSeconds int

	// OnAuthUser, when set, is called after a successful login.
	OnAuthUser OnAuthUserFunc

	// Now is the clock used for expiry stamping. Defaults to time.Now.
	Now func() time.Time
}

// LoginResult is the composed outcome of a completed login.
type LoginResult struct {
	User *User       `json:"user"`
	Auth *AuthRecord `json:"auth"`
}

// RefreshResult is the outcome of a token refresh. Note it carries no user:
// a refresh is stateless with respect to identity and does not touch the
// store.
type RefreshResult struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// New creates a LarkAuth with the given provider client and store.
func New(client *LarkClient, store UserStore) *LarkAuth {
	out := &LarkAuth{Client: client, Store: store}
	return out.EnsureDefaults()
}

func (a *LarkAuth) EnsureDefaults() *LarkAuth {
	if a.AppName == "" {
		a.AppName = "LarkAuth"
	}
	if a.SuccessURL == "" {
		a.SuccessURL = "/static/login-success.html"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = a.AppName + "-Issuer"
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = a.AppName + "AuthToken"
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	return a
}

// CompleteLogin runs the full login pipeline for an authorization code:
// app token, code exchange, profile fetch, expiry stamping, then the
// create-or-update merge and the auth record write. Any failure aborts the
// pipeline before anything is written.
func (a *LarkAuth) CompleteLogin(ctx context.Context, code string) (*LoginResult, error) {
	a.EnsureDefaults()
	if code == "" {
		return nil, NewError(KindInvalidInput, "missing authorization code")
	}

	appToken, err := a.Client.AppAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := a.Client.ExchangeCode(ctx, code, appToken)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, NewError(KindUnauthorized, "failed to get access token")
	}

	profile, err := a.Client.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if field := missingProfileField(profile); field != "" {
		return nil, NewError(KindInvalidInput, "missing required user information: "+field)
	}

	expiry := tokens.Stamp(a.Now())

	user, err := a.Store.Upsert(profile)
	if err != nil {
		return nil, err
	}

	auth := &AuthRecord{
		UserID:           user.ID,
		AccessToken:      tokens.AccessToken,
		TokenType:        tokens.TokenTypeOrDefault(),
		RefreshToken:     tokens.RefreshToken,
		ExpiresAt:        expiry.ExpiresAt,
		RefreshExpiresAt: expiry.RefreshExpiresAt,
	}
	if err := a.Store.PutAuth(user.ID, auth); err != nil {
		return nil, err
	}

	slog.Info("completed lark login", "userId", user.ID, "openId", user.OpenID)
	return &LoginResult{User: user, Auth: auth}, nil
}

// RefreshTokens exchanges a refresh token for a fresh pair with stamped
// expiries. The stored auth record is deliberately left alone - the caller
// owns the new tokens.
func (a *LarkAuth) RefreshTokens(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	a.EnsureDefaults()
	if refreshToken == "" {
		return nil, NewError(KindInvalidInput, "missing refresh token")
	}

	appToken, err := a.Client.AppAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := a.Client.RefreshAccessToken(ctx, refreshToken, appToken)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, NewError(KindUnauthorized, "failed to refresh token")
	}

	expiry := tokens.Stamp(a.Now())
	return &RefreshResult{
		AccessToken:      tokens.AccessToken,
		TokenType:        tokens.TokenTypeOrDefault(),
		RefreshToken:     tokens.RefreshToken,
		ExpiresAt:        expiry.ExpiresAt,
		RefreshExpiresAt: expiry.RefreshExpiresAt,
	}, nil
}

// GetUserWithAuth composes a user and their auth record, as rendered by
// GET /user/{id}.
func (a *LarkAuth) GetUserWithAuth(userID string) (*LoginResult, error) {
	user, err := a.Store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	auth, err := a.Store.GetAuth(userID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Auth: auth}, nil
}

// missingProfileField returns the first required profile field that is
// absent, or "" when the profile is complete.
func missingProfileField(p *Profile) string {
	switch {
	case p.OpenID == "":
		return "open_id"
	case p.UnionID == "":
		return "union_id"
	case p.Name == "":
		return "name"
	default:
		return ""
	}
}
