package storage

import (
	"context"
	"time"

	"loan-predictor/internal/models"

	"github.com/google/uuid"
)

func (s *Store) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(f).Error
}

func (s *Store) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	items := []models.Feedback{}
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error
	return items, err
}

func (s *Store) CountFeedback(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Feedback{}).Count(&n).Error
	return n, err
}
