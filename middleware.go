package larkauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware resolves the logged in user for downstream handlers, checking
// the request context, the session, and finally the auth token cookie or
// header (verified as a JWT).
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)
}

func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInUserId returns the ID of the logged in user for this request,
// or "" if nobody is logged in.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	if v := r.Context().Value(userParamNameKey(a.UserParamName)); v != nil {
		if userId, ok := v.(string); ok && userId != "" {
			return userId
		}
	}

	if a.SessionGetter != nil {
		if v := a.SessionGetter(r, a.UserParamName); v != nil {
			if userId, ok := v.(string); ok && userId != "" {
				return userId
			}
		}
	}

	if a.VerifyToken == nil {
		return ""
	}

	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for i, t := range authTokens {
		authTokens[i] = strings.TrimPrefix(t, "Bearer ")
	}
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		if userId, _, err := a.VerifyToken(authToken); err == nil && userId != "" {
			return userId
		}
	}
	return ""
}

// ExtractUser resolves the logged in user (if any) and stores their ID as
// a request scoped variable. It never redirects; use EnsureUser to enforce
// a login.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userId := a.GetLoggedInUserId(r)
			next.ServeHTTP(w, a.setLoggedInUserId(userId, r))
		},
	)
}

// EnsureUser is like ExtractUser but redirects to the login page (or
// responds 401 when no redirect URL is configured) if nobody is logged in.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userId := a.GetLoggedInUserId(r)
			if userId == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					encodedUrl := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInUserId(userId, r))
		},
	)
}

// setLoggedInUserId makes the user ID available to all downstream handlers
// as a request scoped variable.
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
