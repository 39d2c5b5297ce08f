package prediction

import (
	"context"
	"fmt"
	"time"

	"loan-predictor/internal/events"
	"loan-predictor/internal/models"
	"loan-predictor/internal/storage"

	"go.uber.org/zap"
)

type Service struct {
	store  *storage.Store
	model  Model
	events events.Publisher
	log    *zap.Logger
}

func NewService(store *storage.Store, model Model, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, model: model, events: pub, log: log}
}

func (s *Service) Model() Model { return s.model }

// Predict validates the form, asks the model and appends the verdict to the user's history.
func (s *Service) Predict(ctx context.Context, email string, raw map[string]any) (*models.Prediction, error) {
	f, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := s.model.Predict(ctx, f)
	if err != nil {
		return nil, err
	}
	s.log.Debug("model answered",
		zap.String("model", s.model.Name()),
		zap.String("result", out.Result),
		zap.Duration("took", time.Since(start)))

	p := &models.Prediction{
		Email:      email,
		Input:      f.Vector(),
		Result:     out.Result,
		Confidence: out.Confidence,
		Model:      s.model.Name(),
	}
	if err := s.store.CreatePrediction(ctx, p); err != nil {
		return nil, fmt.Errorf("save prediction: %w", err)
	}

	err = s.events.PublishJSON(ctx, events.RKPredictionCreated, events.PredictionCreated{
		ID:         p.ID,
		Email:      p.Email,
		Result:     p.Result,
		Confidence: p.Confidence,
		Model:      p.Model,
		At:         p.CreatedAt,
	})
	if err != nil {
		s.log.Warn("publish prediction event failed", zap.String("id", p.ID), zap.Error(err))
	}
	return p, nil
}

func (s *Service) History(ctx context.Context, email string) ([]models.Prediction, error) {
	return s.store.PredictionsByEmail(ctx, email)
}

func (s *Service) ClearHistory(ctx context.Context, email string) (int64, error) {
	n, err := s.store.DeletePredictionsByEmail(ctx, email)
	if err == nil {
		s.log.Info("history cleared", zap.String("email", email), zap.Int64("rows", n))
	}
	return n, err
}

// Summary is the per-user dashboard view of their history.
type Summary struct {
	Total             int                `json:"total"`
	Repaid            int                `json:"repaid"`
	AtRisk            int                `json:"at_risk"`
	AverageConfidence float64            `json:"average_confidence"`
	Latest            *models.Prediction `json:"latest"`
}

func Summarize(history []models.Prediction) Summary {
	var sum Summary
	var total float64
	for i := range history {
		p := history[i]
		sum.Total++
		if p.Repaid() {
			sum.Repaid++
		} else {
			sum.AtRisk++
		}
		total += p.Confidence
		if sum.Latest == nil || p.CreatedAt.After(sum.Latest.CreatedAt) {
			sum.Latest = &history[i]
		}
	}
	if sum.Total > 0 {
		sum.AverageConfidence = roundConfidence(total / float64(sum.Total))
	}
	return sum
}

func (s *Service) Summary(ctx context.Context, email string) (Summary, error) {
	history, err := s.History(ctx, email)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(history), nil
}
