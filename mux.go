package larkauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Handler returns the HTTP surface for the auth flows:
//
//	GET  /auth/login     redirect to the Lark authorize page
//	GET  /auth/callback  complete a login from an authorization code
//	POST /auth/refresh   exchange a refresh token for a new pair
//	GET  /user/{id}      composed user + auth record
//	GET  /logout         clear the session
//
// The host app mounts this wherever it likes and wraps it with the session
// manager's LoadAndSave middleware.
func (a *LarkAuth) Handler() http.Handler {
	return a.setupRoutes().router
}

func (a *LarkAuth) setupRoutes() *LarkAuth {
	a.EnsureDefaults()
	if a.router == nil {
		a.router = mux.NewRouter()
		a.router.HandleFunc("/auth/login", a.onLogin).Methods(http.MethodGet)
		a.router.HandleFunc("/auth/callback", a.onCallback).Methods(http.MethodGet)
		a.router.HandleFunc("/auth/refresh", a.onRefresh).Methods(http.MethodPost)
		a.router.HandleFunc("/user/{id}", a.onGetUser).Methods(http.MethodGet)
		a.router.HandleFunc("/logout", a.onLogout)
	}
	return a
}

// onLogin sends the browser to the Lark authorize page. Pure string
// construction - Lark expects app_id rather than the usual client_id so
// the URL is assembled by hand.
func (a *LarkAuth) onLogin(w http.ResponseWriter, r *http.Request) {
	// remember where to go back to after the callback, if the caller asked
	if callbackURL := r.URL.Query().Get("callbackURL"); callbackURL != "" {
		http.SetCookie(w, &http.Cookie{
			Name:    "oauthCallbackURL",
			Value:   callbackURL,
			Path:    "/",
			Expires: time.Now().Add(24 * time.Hour),
			MaxAge:  120, // keep this short
		})
	}
	state := generateStateCookie(w)

	authBase := a.Client.AuthBaseURL
	if authBase == "" {
		authBase = DefaultLarkAuthBaseURL
	}
	authURL := fmt.Sprintf("%s/authen/v1/authorize?app_id=%s&redirect_uri=%s&response_type=code&state=%s",
		authBase, url.QueryEscape(a.Client.AppID), url.QueryEscape(a.RedirectURI), url.QueryEscape(state))
	slog.Info("redirecting to lark auth url", "url", authURL)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// onCallback handles the redirect back from Lark with an authorization
// code, runs the login pipeline and sends the browser to the success page.
func (a *LarkAuth) onCallback(w http.ResponseWriter, r *http.Request) {
	if stateCookie, _ := r.Cookie("oauthstate"); stateCookie != nil {
		if r.URL.Query().Get("state") != stateCookie.Value {
			http.SetCookie(w, &http.Cookie{Name: "oauthstate", MaxAge: -1, Expires: time.Now()})
			a.errorResponse(w, http.StatusBadRequest, "invalid oauth state")
			return
		}
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		a.errorResponse(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	result, err := a.CompleteLogin(r.Context(), code)
	if err != nil {
		slog.Error("error in lark callback", "err", err)
		a.errorResponse(w, HTTPStatus(err), "Failed to process Lark authentication")
		return
	}

	a.setLoggedInUser(result.User, w, r)
	if a.OnAuthUser != nil {
		a.OnAuthUser(result.User, result.Auth.OAuth2Token(), w, r)
	}

	redirectURL := a.SuccessURL
	if callbackCookie, _ := r.Cookie("oauthCallbackURL"); callbackCookie != nil && callbackCookie.Value != "" {
		redirectURL = callbackCookie.Value
		http.SetCookie(w, &http.Cookie{
			Name: "oauthCallbackURL", Value: "", Path: "/",
			MaxAge: -1, Expires: time.Now(),
		})
	}
	sep := "?"
	if strings.Contains(redirectURL, "?") {
		sep = "&"
	}
	redirectURL += sep + "userId=" + url.QueryEscape(result.User.ID)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *LarkAuth) onRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := a.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		slog.Error("error refreshing token", "err", err)
		a.errorResponse(w, HTTPStatus(err), "Failed to refresh token")
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *LarkAuth) onGetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	result, err := a.GetUserWithAuth(userID)
	if err != nil {
		a.errorResponse(w, HTTPStatus(err), "User not found")
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *LarkAuth) onLogout(w http.ResponseWriter, r *http.Request) {
	a.setLoggedInUser(nil, w, r)
	toUrl := r.URL.Query().Get("to")
	if toUrl == "" {
		fmt.Fprintf(w, "Logged Out")
	} else {
		http.Redirect(w, r, toUrl, http.StatusFound)
	}
}

func (a *LarkAuth) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "err", err)
	}
}

func (a *LarkAuth) errorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}

func (a *LarkAuth) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}

// setLoggedInUser sets (or with a nil user, clears) the session and auth
// token cookies on all configured cookie domains.
func (a *LarkAuth) setLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	for _, cookieDomain := range domains {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Value:  "",
			MaxAge: -1, Expires: time.Now(),
			Domain: cookieDomain,
			Path:   "/",
		})

		if user != nil {
			if a.Session != nil {
				a.Session.Put(r.Context(), "loggedInUserId", user.ID)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    "loggedInUserId",
				Value:   user.ID,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": user.ID,
				"iss": a.JwtIssuer,
				"aud": "user",
				"exp": time.Now().Add(time.Hour).Unix(),
				"iat": time.Now().Unix(),
			})
			tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
			if err != nil {
				slog.Info("error signing token", "err", err)
			}

			if a.Session != nil {
				a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Value:   tokenString,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})
			return tokenString
		} else {
			log.Println("Logging out user")
			if a.Session != nil {
				if err := a.Session.Clear(r.Context()); err != nil {
					slog.Warn("error clearing session ", "err", err)
				}
			}
			http.SetCookie(w, &http.Cookie{
				Name:    "loggedInUserId",
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
	return ""
}

func generateStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name: "oauthstate", Value: state, Path: "/",
		Expires: time.Now().Add(time.Hour),
	})
	return state
}
