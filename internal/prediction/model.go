package prediction

import (
	"context"
	"errors"
	"math"

	"loan-predictor/internal/models"
)

// Outcome is a model verdict; Confidence is a percentage.
type Outcome struct {
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
}

type Model interface {
	Name() string
	Predict(ctx context.Context, f Features) (Outcome, error)
}

// StatsReporter is implemented by models that know their evaluation metrics.
type StatsReporter interface {
	Stats() Stats
}

// ErrUnavailable means the model could not be reached or answered nonsense.
var ErrUnavailable = errors.New("prediction service unavailable")

// RejectedError is a model refusing the input with its own message.
type RejectedError struct {
	Msg string
}

func (e *RejectedError) Error() string { return e.Msg }

// outcomeFromRisk turns the probability of non-repayment into a labelled outcome.
func outcomeFromRisk(p, threshold float64) Outcome {
	if p >= threshold {
		return Outcome{Result: models.ResultAtRisk, Confidence: roundConfidence(p * 100)}
	}
	return Outcome{Result: models.ResultRepaid, Confidence: roundConfidence((1 - p) * 100)}
}

func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}
