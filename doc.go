// Package larkauth implements the Lark (Feishu) OAuth login flow for Go
// applications: exchanging an authorization code for user tokens, fetching
// the authenticated profile, and reconciling that external identity with a
// local user record.
//
// # Architecture
//
// LarkClient: wraps the outbound Lark calls (app access token, code
// exchange, token refresh, profile fetch) and normalizes their responses.
// Lark reports failures through a code field in the JSON body independent
// of the HTTP status, so every envelope is checked for code == 0.
//
// UserStore: persists User and AuthRecord pairs, keyed by a local user id
// with a secondary lookup by Lark open id. A user is created on their
// first login and updated in place on every later one; the auth record is
// replaced wholesale on every login.
//
// LarkAuth: orchestrates the two flows. CompleteLogin turns an
// authorization code into a {User, AuthRecord} pair; RefreshTokens turns a
// refresh token into a fresh token pair with stamped absolute expiries.
// Both are synchronous pipelines that abort on the first failure with
// nothing partially written.
//
// # Basic Usage
//
//	cfg := larkauth.LoadConfig()
//	auth := larkauth.NewFromConfig(cfg, larkauth.NewMemUserStore())
//	auth.Session = scs.New()
//
//	mux := http.NewServeMux()
//	mux.Handle("/", auth.Session.LoadAndSave(auth.Handler()))
//	http.ListenAndServe(":8000", mux)
//
// This mounts GET /auth/login, GET /auth/callback, POST /auth/refresh,
// GET /user/{id} and GET /logout.
//
// # Store Implementations
//
// NewMemUserStore is an in-memory store for development and tests. The
// stores package provides a file-backed store, stores/gorm a GORM-backed
// one for SQL databases, and stores/gae a Google Cloud Datastore one. All
// of them serialize auth record writes per user so concurrent logins and
// refreshes never produce a torn record.
//
// # Errors
//
// Failures carry a Kind (invalid input, unauthorized, unavailable, not
// found, internal) and HTTPStatus maps them onto response codes. Provider
// rejections embed a ProviderError with Lark's code and msg. Nothing is
// retried: authorization codes are single-use and refresh exchanges are
// not idempotent.
//
// # Testing
//
// LarkClient takes an injectable HTTPClient and BaseURL, so flows can be
// tested against an httptest server that stubs the Lark endpoints. The
// engine's clock is injectable via the Now field for exact expiry
// assertions.
package larkauth
