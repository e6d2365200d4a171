package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestUserIDFromContext(t *testing.T) {
	ctx := context.Background()
	if got := UserIDFromContext(ctx); got != "" {
		t.Errorf("expected empty user id without metadata, got %q", got)
	}

	md := metadata.Pairs(DefaultMetadataKeyUserID, "user123")
	ctx = metadata.NewIncomingContext(context.Background(), md)
	if got := UserIDFromContext(ctx); got != "user123" {
		t.Errorf("UserIDFromContext() = %q, want user123", got)
	}
}

func TestUserIDFromContextWithConfig(t *testing.T) {
	config := &Config{MetadataKeyUserID: "custom-user-key"}

	md := metadata.Pairs("custom-user-key", "user456")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	if got := UserIDFromContextWithConfig(ctx, config); got != "user456" {
		t.Errorf("UserIDFromContextWithConfig() = %q, want user456", got)
	}

	// The default key must not be consulted when a custom key is set.
	md = metadata.Pairs(DefaultMetadataKeyUserID, "user789")
	ctx = metadata.NewIncomingContext(context.Background(), md)
	if got := UserIDFromContextWithConfig(ctx, config); got != "" {
		t.Errorf("expected empty user id, got %q", got)
	}
}

func TestUserIDToOutgoingContext(t *testing.T) {
	ctx := UserIDToOutgoingContext(context.Background(), "user123")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("no outgoing metadata")
	}
	if got := md.Get(DefaultMetadataKeyUserID); len(got) != 1 || got[0] != "user123" {
		t.Errorf("outgoing user id = %v, want [user123]", got)
	}
}

func TestTokenToOutgoingContext(t *testing.T) {
	ctx := TokenToOutgoingContext(context.Background(), "tok")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("no outgoing metadata")
	}
	if got := md.Get(DefaultMetadataKeyAuthorization); len(got) != 1 || got[0] != "Bearer tok" {
		t.Errorf("outgoing authorization = %v, want [Bearer tok]", got)
	}
}

func TestIsAuthenticated(t *testing.T) {
	if IsAuthenticated(context.Background()) {
		t.Error("empty context should not be authenticated")
	}

	md := metadata.Pairs(DefaultMetadataKeyUserID, "user123")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	if !IsAuthenticated(ctx) {
		t.Error("context with user id should be authenticated")
	}
}

func TestWithUserIDPreservesMetadata(t *testing.T) {
	md := metadata.Pairs("other-key", "other-value")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	config := DefaultConfig()
	ctx = withUserID(ctx, config, "user123")

	got, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		t.Fatal("no incoming metadata")
	}
	if v := got.Get(DefaultMetadataKeyUserID); len(v) != 1 || v[0] != "user123" {
		t.Errorf("user id = %v, want [user123]", v)
	}
	if v := got.Get("other-key"); len(v) != 1 || v[0] != "other-value" {
		t.Errorf("other-key = %v, want [other-value]", v)
	}
}
