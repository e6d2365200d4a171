//go:build !wasm
// +build !wasm

package gorm

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	la "github.com/panyam/larkauth"
)

// AutoMigrate runs database migrations for all larkauth tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AuthRecordModel{},
	)
}

// UserStore implements la.UserStore using GORM. Upsert and PutAuth run
// inside transactions so concurrent writes for the same user serialize at
// the database and the last writer wins.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByOpenID(openID string) (*la.User, error) {
	var model UserModel
	if err := s.db.First(&model, "open_id = ?", openID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, la.NewError(la.KindNotFound, "user not found")
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) Upsert(profile *la.Profile) (*la.User, error) {
	var out *la.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var model UserModel
		err := tx.First(&model, "open_id = ?", profile.OpenID).Error
		if err == nil {
			model.Name = profile.Name
			model.Email = profile.Email
			model.AvatarURL = profile.AvatarURL
			model.UpdatedAt = now
			if err := tx.Save(&model).Error; err != nil {
				return err
			}
			out = model.ToUser()
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		model = UserModel{
			ID:        uuid.NewString(),
			Name:      profile.Name,
			Email:     profile.Email,
			OpenID:    profile.OpenID,
			UnionID:   profile.UnionID,
			AvatarURL: profile.AvatarURL,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = model.ToUser()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserStore) PutAuth(userID string, auth *la.AuthRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user UserModel
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return la.NewError(la.KindNotFound, "user not found: "+userID)
			}
			return err
		}
		rec := *auth
		rec.UserID = userID
		return tx.Save(AuthRecordToModel(&rec)).Error
	})
}

func (s *UserStore) GetUser(userID string) (*la.User, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, la.NewError(la.KindNotFound, "user not found: "+userID)
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetAuth(userID string) (*la.AuthRecord, error) {
	var model AuthRecordModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, la.NewError(la.KindNotFound, "auth information not found for user: "+userID)
		}
		return nil, err
	}
	return model.ToAuthRecord(), nil
}
