package prediction

import (
	"context"
	"math/rand/v2"
	"sync"

	"loan-predictor/internal/models"
)

// RandomModel is the demo stand-in used when no real model is wired up.
type RandomModel struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomModel(seed uint64) *RandomModel {
	return &RandomModel{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (m *RandomModel) Name() string { return "random" }

func (m *RandomModel) Predict(context.Context, Features) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := models.ResultRepaid
	if m.rng.IntN(2) == 1 {
		result = models.ResultAtRisk
	}
	return Outcome{Result: result, Confidence: roundConfidence(50 + m.rng.Float64()*50)}, nil
}
