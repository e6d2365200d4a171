// Package grpc lets gRPC backends accept the session JWT minted by
// larkauth on login. The interceptor verifies the token from the
// authorization metadata and exposes the user id to handlers via context
// metadata helpers.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// DefaultMetadataKeyUserID is the gRPC metadata key carrying the
// authenticated user ID once the interceptor has verified a token.
const DefaultMetadataKeyUserID = "x-user-id"

// DefaultMetadataKeyAuthorization is the gRPC metadata key carrying the
// bearer token, mirroring the HTTP Authorization header.
const DefaultMetadataKeyAuthorization = "authorization"

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyUserID is the key for the resolved user id. Defaults to
	// "x-user-id".
	MetadataKeyUserID string

	// MetadataKeyAuthorization is the key the bearer token is read from.
	// Defaults to "authorization".
	MetadataKeyAuthorization string

	// TrustUserIDMetadata accepts a pre-resolved x-user-id from the caller
	// without a token. Only enable this behind a gateway that has already
	// authenticated the request.
	TrustUserIDMetadata bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyUserID:        DefaultMetadataKeyUserID,
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
}

// UserIDFromContext extracts the authenticated user ID from the gRPC
// context metadata. Returns empty string if no user is authenticated.
func UserIDFromContext(ctx context.Context) string {
	return UserIDFromContextWithConfig(ctx, nil)
}

// UserIDFromContextWithConfig extracts the user ID using the given config.
func UserIDFromContextWithConfig(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(config.MetadataKeyUserID); len(values) > 0 {
		return values[0]
	}
	return ""
}

// UserIDToOutgoingContext adds the user ID to outgoing gRPC metadata, for
// services calling further services on the user's behalf.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}

// TokenToOutgoingContext adds a bearer token to outgoing gRPC metadata, the
// way an HTTP client would set the Authorization header.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

// IsAuthenticated returns true if there is an authenticated user in the
// context.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}

// withUserID stamps the resolved user id into the incoming metadata so
// downstream handlers can read it with UserIDFromContext.
func withUserID(ctx context.Context, config *Config, userID string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	} else {
		md = md.Copy()
	}
	md.Set(config.MetadataKeyUserID, userID)
	return metadata.NewIncomingContext(ctx, md)
}
