package larkauth

import (
	"os"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
)

// Config holds the startup configuration for a host app. All values come
// from the environment (optionally seeded from a .env file); the core
// treats them as opaque.
type Config struct {
	AppID        string
	AppSecret    string
	APIBaseURL   string
	AuthBaseURL  string
	RedirectURI  string
	SuccessURL   string
	JWTSecretKey string

	// SessionTimeoutInSeconds defaults to 1 day.
	SessionTimeoutInSeconds int
}

// LoadConfig reads configuration from the environment, loading a .env file
// first if one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	timeout := 86400
	if v := os.Getenv("LARK_SESSION_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeout = parsed
		}
	}

	return &Config{
		AppID:                   os.Getenv("LARK_APP_ID"),
		AppSecret:               os.Getenv("LARK_APP_SECRET"),
		APIBaseURL:              getEnv("LARK_API_BASE_URL", DefaultLarkBaseURL),
		AuthBaseURL:             getEnv("LARK_AUTH_BASE_URL", DefaultLarkAuthBaseURL),
		RedirectURI:             os.Getenv("LARK_REDIRECT_URI"),
		SuccessURL:              getEnv("LARK_SUCCESS_URL", "/static/login-success.html"),
		JWTSecretKey:            os.Getenv("LARK_JWT_SECRET_KEY"),
		SessionTimeoutInSeconds: timeout,
	}
}

// NewFromConfig builds a ready-to-serve LarkAuth from config: provider
// client, session manager, and defaults. Mount the handler behind
// Session.LoadAndSave.
// The store is passed in - pick NewMemUserStore for development or one of
// the stores packages for durable backends.
func NewFromConfig(cfg *Config, store UserStore) *LarkAuth {
	client := NewLarkClient(cfg.AppID, cfg.AppSecret)
	client.BaseURL = cfg.APIBaseURL
	client.AuthBaseURL = cfg.AuthBaseURL

	auth := New(client, store)
	auth.RedirectURI = cfg.RedirectURI
	auth.SuccessURL = cfg.SuccessURL
	auth.JWTSecretKey = cfg.JWTSecretKey
	auth.SessionTimeoutInSeconds = cfg.SessionTimeoutInSeconds
	auth.EnsureDefaults()

	auth.Session = scs.New()
	auth.Session.Lifetime = time.Duration(auth.SessionTimeoutInSeconds) * time.Second
	return auth
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
