package feedback

import (
	"net/http"
	"strings"

	"loan-predictor/internal/events"
	"loan-predictor/internal/httpx"
	"loan-predictor/internal/models"
	"loan-predictor/internal/storage"

	"go.uber.org/zap"
)

const maxMessageLen = 2000

type SubmitRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=2000"`
}

// validate trims the request and returns the client-facing error, or "".
func (req *SubmitRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Message = strings.TrimSpace(req.Message)

	err := httpx.Validate(req)
	switch {
	case err == nil:
		return ""
	case httpx.FailedOn(err, "required"):
		return "Name, email and message are required"
	case httpx.FailedOn(err, "max"):
		return "Message is too long"
	}
	return "Invalid email address"
}

// SubmitHandler stores feedback from anyone, signed in or not.
func SubmitHandler(store *storage.Store, pub events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		if msg := req.validate(); msg != "" {
			httpx.Error(w, http.StatusBadRequest, msg)
			return
		}

		fb := &models.Feedback{Name: req.Name, Email: req.Email, Message: req.Message}
		if err := store.CreateFeedback(r.Context(), fb); err != nil {
			log.Error("save feedback failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}

		err := pub.PublishJSON(r.Context(), events.RKFeedbackReceived, events.FeedbackReceived{
			ID:    fb.ID,
			Email: fb.Email,
			At:    fb.CreatedAt,
		})
		if err != nil {
			log.Warn("publish feedback event failed", zap.Error(err))
		}
		httpx.JSON(w, http.StatusCreated, fb)
	}
}
