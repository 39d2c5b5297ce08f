package storage

import (
	"context"
	"database/sql"
	"time"

	"loan-predictor/internal/models"

	"github.com/google/uuid"
)

// PredictionFilter narrows ListPredictions. Zero values match everything.
type PredictionFilter struct {
	Email  string
	Result string
	Limit  int
}

func (s *Store) CreatePrediction(ctx context.Context, p *models.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) PredictionsByEmail(ctx context.Context, email string) ([]models.Prediction, error) {
	return s.ListPredictions(ctx, PredictionFilter{Email: email})
}

func (s *Store) ListPredictions(ctx context.Context, f PredictionFilter) ([]models.Prediction, error) {
	q := s.db.WithContext(ctx).Model(&models.Prediction{})
	if f.Email != "" {
		q = q.Where("email = ?", f.Email)
	}
	if f.Result != "" {
		q = q.Where("result = ?", f.Result)
	}

	preds := []models.Prediction{}
	err := q.Order("created_at DESC").Limit(clampLimit(f.Limit)).Find(&preds).Error
	return preds, err
}

// DeletePredictionsByEmail clears one user's history and reports how many rows went.
func (s *Store) DeletePredictionsByEmail(ctx context.Context, email string) (int64, error) {
	res := s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.Prediction{})
	return res.RowsAffected, res.Error
}

func (s *Store) CountPredictions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Prediction{}).Count(&n).Error
	return n, err
}

// PredictionBreakdown counts predictions per result label.
func (s *Store) PredictionBreakdown(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Result string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Select("result, COUNT(*) AS count").
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Result] = r.Count
	}
	return out, nil
}

// AverageConfidence is 0 when there are no predictions.
func (s *Store) AverageConfidence(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	row := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Select("AVG(confidence)").
		Row()
	if err := row.Scan(&avg); err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// DailyPredictionCounts buckets predictions by UTC day, from the day of since
// through the day of until. Every day in the window is present, including
// empty ones, and the first day counts from midnight.
func (s *Store) DailyPredictionCounts(ctx context.Context, since, until time.Time) ([]DayCount, error) {
	first := since.UTC().Truncate(24 * time.Hour)
	last := until.UTC().Truncate(24 * time.Hour)

	var stamps []time.Time
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("created_at >= ? AND created_at < ?", first, last.AddDate(0, 0, 1)).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(stamps))
	for _, t := range stamps {
		counts[t.UTC().Format(time.DateOnly)]++
	}

	var days []DayCount
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		days = append(days, DayCount{Day: key, Count: counts[key]})
	}
	return days, nil
}

type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}
