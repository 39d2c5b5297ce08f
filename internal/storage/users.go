package storage

import (
	"context"
	"errors"
	"time"

	"loan-predictor/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", u.Email).First(&existing).Error; err == nil {
		return ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAdmin promotes or demotes an existing account.
func (s *Store) SetAdmin(ctx context.Context, email string, admin bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("is_admin", admin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&users).Error
	return users, err
}

// RecentSignups returns non-admin accounts, newest first.
func (s *Store) RecentSignups(ctx context.Context, limit int) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Where("is_admin = ?", false).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&users).Error
	return users, err
}

func (s *Store) DeleteUser(ctx context.Context, email string) error {
	res := s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_admin = ?", true).Count(&n).Error
	return n > 0, err
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (s *Store) RecordLogin(ctx context.Context, email, method string) error {
	return s.db.WithContext(ctx).Create(&models.LoginEvent{
		Email:     email,
		Method:    method,
		CreatedAt: time.Now().UTC(),
	}).Error
}

func (s *Store) RecentLogins(ctx context.Context, limit int) ([]models.LoginEvent, error) {
	events := []models.LoginEvent{}
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&events).Error
	return events, err
}
