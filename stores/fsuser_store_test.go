package stores

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	la "github.com/panyam/larkauth"
)

func newTestFSStore(t *testing.T) *FSUserStore {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "larkauth-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return NewFSUserStore(tmpDir)
}

func TestFSUserStoreUpsert(t *testing.T) {
	store := newTestFSStore(t)

	first, err := store.Upsert(&la.Profile{OpenID: "o1", UnionID: "u1", Name: "Alice", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if first.ID == "" {
		t.Fatal("new user has empty id")
	}

	second, err := store.Upsert(&la.Profile{OpenID: "o1", UnionID: "u1", Name: "Alice Chen"})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert minted a new id: %q != %q", second.ID, first.ID)
	}
	if second.Name != "Alice Chen" {
		t.Errorf("upsert did not take the new name: %q", second.Name)
	}

	// The row survives a fresh store over the same directory.
	reopened := NewFSUserStore(store.StoragePath)
	found, err := reopened.FindByOpenID("o1")
	if err != nil {
		t.Fatalf("FindByOpenID() after reopen: %v", err)
	}
	if found.ID != first.ID || found.Name != "Alice Chen" {
		t.Errorf("unexpected user after reopen: %+v", found)
	}
}

func TestFSUserStorePutAuth(t *testing.T) {
	store := newTestFSStore(t)
	user, err := store.Upsert(&la.Profile{OpenID: "o1", UnionID: "u1", Name: "Alice"})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	auth := &la.AuthRecord{
		AccessToken: "at", TokenType: "Bearer", RefreshToken: "rt",
		ExpiresAt:        time.Now().Add(time.Hour).UTC(),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	}
	if err := store.PutAuth(user.ID, auth); err != nil {
		t.Fatalf("PutAuth() error: %v", err)
	}

	got, err := store.GetAuth(user.ID)
	if err != nil {
		t.Fatalf("GetAuth() error: %v", err)
	}
	if got.UserID != user.ID || got.AccessToken != "at" {
		t.Errorf("unexpected auth record: %+v", got)
	}
	if !got.ExpiresAt.Equal(auth.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, auth.ExpiresAt)
	}

	if err := store.PutAuth("missing-user", auth); !la.IsKind(err, la.KindNotFound) {
		t.Errorf("PutAuth for unknown user: want KindNotFound, got %v", err)
	}
}

func TestFSUserStoreNotFound(t *testing.T) {
	store := newTestFSStore(t)

	if _, err := store.GetUser("nope"); !la.IsKind(err, la.KindNotFound) {
		t.Errorf("GetUser: want KindNotFound, got %v", err)
	}
	if _, err := store.GetAuth("nope"); !la.IsKind(err, la.KindNotFound) {
		t.Errorf("GetAuth: want KindNotFound, got %v", err)
	}
	if _, err := store.FindByOpenID("nope"); !la.IsKind(err, la.KindNotFound) {
		t.Errorf("FindByOpenID: want KindNotFound, got %v", err)
	}
}

func TestFSUserStoreLeavesNoTempFiles(t *testing.T) {
	store := newTestFSStore(t)
	user, err := store.Upsert(&la.Profile{OpenID: "o1", UnionID: "u1", Name: "Alice"})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := store.PutAuth(user.ID, &la.AuthRecord{AccessToken: "at"}); err != nil {
		t.Fatalf("PutAuth() error: %v", err)
	}

	err = filepath.Walk(store.StoragePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) != ".json" {
			t.Errorf("unexpected file left behind: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
}
