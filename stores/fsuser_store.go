package stores

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	la "github.com/panyam/larkauth"
)

// FSUserStore implements la.UserStore using filesystem storage, suitable
// for development and small applications.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/
//	│   └── {userId}.json
//	├── auth/
//	│   └── {userId}.json
//	└── openids/
//	    └── {openId}.json      # {"user_id": "..."} index for FindByOpenID
//
// # Concurrency Model
//
// Individual file writes are atomic (write to temp, rename). A store-wide
// mutex additionally serializes Upsert and PutAuth so concurrent logins
// for the same user are last-write-wins with no torn record.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

// openIDIndex is the payload of an openids/ index file.
type openIDIndex struct {
	OpenID string `json:"open_id"`
	UserID string `json:"user_id"`
}

func (s *FSUserStore) userPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) authPath(userId string) string {
	return filepath.Join(s.StoragePath, "auth", userId+".json")
}

func (s *FSUserStore) openIDPath(openId string) string {
	return filepath.Join(s.StoragePath, "openids", openId+".json")
}

func (s *FSUserStore) FindByOpenID(openID string) (*la.User, error) {
	var index openIDIndex
	if err := s.readJSON(s.openIDPath(openID), &index); err != nil {
		return nil, err
	}
	return s.GetUser(index.UserID)
}

func (s *FSUserStore) Upsert(profile *la.Profile) (*la.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	var index openIDIndex
	err := s.readJSON(s.openIDPath(profile.OpenID), &index)
	if err == nil {
		var user la.User
		if err := s.readJSON(s.userPath(index.UserID), &user); err != nil {
			return nil, err
		}
		user.Name = profile.Name
		user.Email = profile.Email
		user.AvatarURL = profile.AvatarURL
		user.UpdatedAt = now
		if err := s.writeJSON(s.userPath(user.ID), &user); err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !la.IsKind(err, la.KindNotFound) {
		return nil, err
	}

	user := &la.User{
		ID:        uuid.NewString(),
		Name:      profile.Name,
		Email:     profile.Email,
		OpenID:    profile.OpenID,
		UnionID:   profile.UnionID,
		AvatarURL: profile.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeJSON(s.userPath(user.ID), user); err != nil {
		return nil, err
	}
	index = openIDIndex{OpenID: user.OpenID, UserID: user.ID}
	if err := s.writeJSON(s.openIDPath(user.OpenID), &index); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *FSUserStore) PutAuth(userID string, auth *la.AuthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.userPath(userID)); err != nil {
		if os.IsNotExist(err) {
			return la.NewError(la.KindNotFound, "user not found: "+userID)
		}
		return err
	}

	rec := *auth
	rec.UserID = userID
	return s.writeJSON(s.authPath(userID), &rec)
}

func (s *FSUserStore) GetUser(userID string) (*la.User, error) {
	var user la.User
	if err := s.readJSON(s.userPath(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *FSUserStore) GetAuth(userID string) (*la.AuthRecord, error) {
	var auth la.AuthRecord
	if err := s.readJSON(s.authPath(userID), &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (s *FSUserStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return la.NewError(la.KindNotFound, "not found: "+filepath.Base(path))
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *FSUserStore) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

// writeAtomicFile writes data via a temp file and rename so readers never
// observe a partially written record.
func writeAtomicFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
