package larkauth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", NewError(KindInvalidInput, "bad"), http.StatusBadRequest},
		{"unauthorized", NewError(KindUnauthorized, "nope"), http.StatusUnauthorized},
		{"unavailable", NewError(KindUnavailable, "down"), http.StatusServiceUnavailable},
		{"not found", NewError(KindNotFound, "missing"), http.StatusNotFound},
		{"internal", NewError(KindInternal, "boom"), http.StatusInternalServerError},
		{"untyped error", errors.New("plain"), http.StatusInternalServerError},
		{"wrapped typed error", fmt.Errorf("outer: %w", NewError(KindNotFound, "missing")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKindOfUnwrapsCause(t *testing.T) {
	cause := &ProviderError{Code: 20008, Msg: "invalid code"}
	err := WrapError(KindUnauthorized, "failed to get user access token", cause)

	if KindOf(err) != KindUnauthorized {
		t.Errorf("KindOf() = %v, want KindUnauthorized", KindOf(err))
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Code != 20008 {
		t.Errorf("errors.As did not surface the provider error: %v", err)
	}
	if !IsKind(err, KindUnauthorized) {
		t.Error("IsKind(KindUnauthorized) = false, want true")
	}
	if IsKind(nil, KindInternal) {
		t.Error("IsKind(nil) = true, want false")
	}
}
