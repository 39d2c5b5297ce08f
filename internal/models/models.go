package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null;default:''" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// FeatureVector is the loan form as submitted, keyed by the model's column names.
type FeatureVector map[string]any

func (f FeatureVector) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FeatureVector) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*f = FeatureVector{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return errors.New("models: unsupported feature vector column type")
	}
	return json.Unmarshal(b, f)
}

type Prediction struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	Email      string        `gorm:"index;not null" json:"email"`
	Input      FeatureVector `gorm:"type:text;not null" json:"input"`
	Result     string        `gorm:"index;not null" json:"result"`
	Confidence float64       `gorm:"not null" json:"confidence"`
	Model      string        `json:"model"`
	CreatedAt  time.Time     `gorm:"index" json:"timestamp"`
}

// Result labels shared by every model backend.
const (
	ResultRepaid = "Loan Likely to be Repaid"
	ResultAtRisk = "Loan at Risk of Non-Repayment"
)

// Repaid reports whether the prediction is favourable.
func (p Prediction) Repaid() bool {
	return p.Result == ResultRepaid
}

type LoginEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	Email     string    `gorm:"index;not null" json:"email"`
	Method    string    `json:"method"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

type Feedback struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"date"`
}
