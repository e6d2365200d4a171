package grpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// JWTSecretKey verifies tokens minted by larkauth at login. Must match
	// the LarkAuth.JWTSecretKey of the issuing service.
	JWTSecretKey string

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but UserIDFromContext returns empty.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth for all methods
// except the listed public ones.
func NewInterceptorConfig(jwtSecretKey string, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        DefaultConfig(),
		JWTSecretKey:  jwtSecretKey,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(jwtSecretKey string) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		JWTSecretKey:  jwtSecretKey,
		RequireAuth:   false,
		PublicMethods: make(map[string]bool),
	}
}

func (c *InterceptorConfig) ensureDefaults() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// authenticated user from the request metadata and stamps it into the
// context for handlers.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	if config == nil {
		config = NewInterceptorConfig("")
	}
	config.ensureDefaults()

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		userID := resolveUserID(ctx, config)
		if userID != "" {
			ctx = withUserID(ctx, config.Config, userID)
		}

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if userID == "" {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns the stream-side equivalent of
// UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	if config == nil {
		config = NewInterceptorConfig("")
	}
	config.ensureDefaults()

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		userID := resolveUserID(ctx, config)
		if userID != "" {
			ss = &wrappedStream{ServerStream: ss, ctx: withUserID(ctx, config.Config, userID)}
		}

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if userID == "" {
				return status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		return handler(srv, ss)
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

// resolveUserID resolves the authenticated user for a request: a bearer
// JWT in the authorization metadata, or a pre-resolved user id when the
// config trusts the caller.
func resolveUserID(ctx context.Context, config *InterceptorConfig) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if values := md.Get(config.Config.MetadataKeyAuthorization); len(values) > 0 {
		token := strings.TrimPrefix(values[0], "Bearer ")
		if userID, err := verifyJWT(token, config.JWTSecretKey); err == nil {
			return userID
		}
	}

	if config.Config.TrustUserIDMetadata {
		if values := md.Get(config.Config.MetadataKeyUserID); len(values) > 0 {
			return values[0]
		}
	}

	return ""
}

func verifyJWT(tokenString, secretKey string) (string, error) {
	if secretKey == "" {
		return "", fmt.Errorf("no secret key configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(secretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
