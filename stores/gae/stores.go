//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	la "github.com/panyam/larkauth"
)

// UserStore implements la.UserStore using Google Cloud Datastore. Upsert
// and PutAuth run inside Datastore transactions so concurrent writes for
// the same user serialize with last-writer-wins semantics.
type UserStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewUserStore creates a new Datastore-backed UserStore. Pass a namespace
// to isolate tenants, or "" for the default namespace.
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context.
func (s *UserStore) WithContext(ctx context.Context) *UserStore {
	return &UserStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) FindByOpenID(openID string) (*la.User, error) {
	var index OpenIDEntity
	if err := s.client.Get(s.ctx, s.namespacedKey(KindOpenID, openID), &index); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, la.NewError(la.KindNotFound, "user not found")
		}
		return nil, err
	}
	return s.GetUser(index.UserID)
}

func (s *UserStore) Upsert(profile *la.Profile) (*la.User, error) {
	var out *la.User
	indexKey := s.namespacedKey(KindOpenID, profile.OpenID)

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		now := time.Now()

		var index OpenIDEntity
		err := tx.Get(indexKey, &index)
		if err == nil {
			userKey := s.namespacedKey(KindUser, index.UserID)
			var entity UserEntity
			if err := tx.Get(userKey, &entity); err != nil {
				return err
			}
			entity.Name = profile.Name
			entity.Email = profile.Email
			entity.AvatarURL = profile.AvatarURL
			entity.UpdatedAt = now
			if _, err := tx.Put(userKey, &entity); err != nil {
				return err
			}
			entity.Key = userKey
			out = entity.ToUser()
			return nil
		}
		if err != datastore.ErrNoSuchEntity {
			return err
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
		userKey := s.namespacedKey(KindUser, user.ID)
		if _, err := tx.Put(userKey, UserToEntity(user, userKey)); err != nil {
			return err
		}
		if _, err := tx.Put(indexKey, &OpenIDEntity{Key: indexKey, UserID: user.ID}); err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserStore) PutAuth(userID string, auth *la.AuthRecord) error {
	userKey := s.namespacedKey(KindUser, userID)
	authKey := s.namespacedKey(KindAuthRecord, userID)

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var user UserEntity
		if err := tx.Get(userKey, &user); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return la.NewError(la.KindNotFound, "user not found: "+userID)
			}
			return err
		}
		rec := *auth
		rec.UserID = userID
		_, err := tx.Put(authKey, AuthRecordToEntity(&rec, authKey))
		return err
	})
	return err
}

func (s *UserStore) GetUser(userID string) (*la.User, error) {
	key := s.namespacedKey(KindUser, userID)
	var entity UserEntity
	if err := s.client.Get(s.ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, la.NewError(la.KindNotFound, "user not found: "+userID)
		}
		return nil, err
	}
	entity.Key = key
	return entity.ToUser(), nil
}

func (s *UserStore) GetAuth(userID string) (*la.AuthRecord, error) {
	key := s.namespacedKey(KindAuthRecord, userID)
	var entity AuthRecordEntity
	if err := s.client.Get(s.ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, la.NewError(la.KindNotFound, "auth information not found for user: "+userID)
		}
		return nil, err
	}
	entity.Key = key
	return entity.ToAuthRecord(), nil
}

// ListByUnionID returns all users sharing a Lark union id (the same person
// seen from different apps in the same tenant).
func (s *UserStore) ListByUnionID(unionID string) ([]*la.User, error) {
	query := datastore.NewQuery(KindUser).
		Namespace(s.namespace).
		FilterField("union_id", "=", unionID)

	var users []*la.User
	it := s.client.Run(s.ctx, query)
	for {
		var entity UserEntity
		key, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		entity.Key = key
		users = append(users, entity.ToUser())
	}
	return users, nil
}
