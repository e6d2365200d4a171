package larkauth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemUserStore is an in-memory UserStore suitable for development and
// tests. A single mutex guards both maps, so writes to any one user's auth
// record are trivially serialized - the last writer wins with no torn
// record. Returned values are copies; callers never share memory with the
// store.
type MemUserStore struct {
	mu      sync.RWMutex
	users   map[string]*User       // keyed by local user id
	auths   map[string]*AuthRecord // keyed by local user id
	openIDs map[string]string      // open_id -> user id
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{
		users:   map[string]*User{},
		auths:   map[string]*AuthRecord{},
		openIDs: map[string]string{},
	}
}

func (s *MemUserStore) FindByOpenID(openID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.openIDs[openID]; ok {
		u := *s.users[userID]
		return &u, nil
	}
	return nil, NewError(KindNotFound, "user not found")
}

func (s *MemUserStore) Upsert(profile *Profile) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if userID, ok := s.openIDs[profile.OpenID]; ok {
		existing := s.users[userID]
		existing.Name = profile.Name
		existing.Email = profile.Email
		existing.AvatarURL = profile.AvatarURL
		existing.UpdatedAt = now
		u := *existing
		return &u, nil
	}

	user := &User{
		ID:        uuid.NewString(),
		Name:      profile.Name,
		Email:     profile.Email,
		OpenID:    profile.OpenID,
		UnionID:   profile.UnionID,
		AvatarURL: profile.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[user.ID] = user
	s.openIDs[user.OpenID] = user.ID
	u := *user
	return &u, nil
}

func (s *MemUserStore) PutAuth(userID string, auth *AuthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return NewError(KindNotFound, "user not found: "+userID)
	}
	rec := *auth
	rec.UserID = userID
	s.auths[userID] = &rec
	return nil
}

func (s *MemUserStore) GetUser(userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		u := *user
		return &u, nil
	}
	return nil, NewError(KindNotFound, "user not found: "+userID)
}

func (s *MemUserStore) GetAuth(userID string) (*AuthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if auth, ok := s.auths[userID]; ok {
		a := *auth
		return &a, nil
	}
	return nil, NewError(KindNotFound, "auth information not found for user: "+userID)
}
