package prediction

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"loan-predictor/internal/auth"
	"loan-predictor/internal/httpx"

	"go.uber.org/zap"
)

type PredictResponse struct {
	ID         string    `json:"id"`
	Result     string    `json:"result"`
	Confidence float64   `json:"confidence"`
	Model      string    `json:"model"`
	Timestamp  time.Time `json:"timestamp"`
}

func PredictHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := auth.EmailFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "Authentication required to make a prediction.")
			return
		}

		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil || raw == nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}

		p, err := svc.Predict(r.Context(), email, raw)
		if err != nil {
			var verr *ValidationError
			var rerr *RejectedError
			switch {
			case errors.As(err, &verr):
				httpx.Error(w, http.StatusBadRequest, verr.Msg)
			case errors.As(err, &rerr):
				httpx.Error(w, http.StatusBadRequest, rerr.Msg)
			case errors.Is(err, ErrUnavailable):
				svc.log.Error("model unavailable", zap.Error(err))
				httpx.Error(w, http.StatusBadGateway, "Prediction service unavailable. Please try again later.")
			default:
				svc.log.Error("prediction failed", zap.Error(err))
				httpx.Error(w, http.StatusInternalServerError, "An unexpected error occurred during prediction.")
			}
			return
		}

		httpx.JSON(w, http.StatusOK, PredictResponse{
			ID:         p.ID,
			Result:     p.Result,
			Confidence: p.Confidence,
			Model:      p.Model,
			Timestamp:  p.CreatedAt,
		})
	}
}

// historyTarget picks the token's email, or ?email= when anonymous lookups are allowed.
func historyTarget(r *http.Request, byEmail bool) string {
	if email, ok := auth.EmailFromContext(r.Context()); ok {
		return email
	}
	if byEmail {
		return auth.NormalizeEmail(r.URL.Query().Get("email"))
	}
	return ""
}

func HistoryHandler(svc *Service, byEmail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := historyTarget(r, byEmail)
		if target == "" {
			httpx.Error(w, http.StatusBadRequest, "User email required for history")
			return
		}
		history, err := svc.History(r.Context(), target)
		if err != nil {
			svc.log.Error("load history failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, history)
	}
}

func ClearHistoryHandler(svc *Service, byEmail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := historyTarget(r, byEmail)
		if target == "" {
			httpx.Error(w, http.StatusBadRequest, "User email required for history")
			return
		}
		if _, err := svc.ClearHistory(r.Context(), target); err != nil {
			svc.log.Error("clear history failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.Message(w, http.StatusOK, "History cleared successfully")
	}
}

func DashboardHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := auth.EmailFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sum, err := svc.Summary(r.Context(), email)
		if err != nil {
			svc.log.Error("summary failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.JSON(w, http.StatusOK, sum)
	}
}
