// Package admin serves the admin dashboard: user management, prediction and
// login activity, feedback and model metrics.
package admin

import (
	"errors"
	"math"
	"net/http"
	"time"

	"loan-predictor/internal/auth"
	"loan-predictor/internal/httpx"
	"loan-predictor/internal/models"
	"loan-predictor/internal/prediction"
	"loan-predictor/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRecentLimit = 5
	overviewDays       = 14
)

type Handler struct {
	store *storage.Store
	model prediction.Model
	log   *zap.Logger
	now   func() time.Time
}

func NewHandler(store *storage.Store, model prediction.Model, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, model: model, log: log, now: time.Now}
}

func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	h.log.Error(what, zap.Error(err))
	httpx.Error(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) RecentSignups(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryLimit(r, defaultRecentLimit)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	users, err := h.store.RecentSignups(r.Context(), limit)
	if err != nil {
		h.fail(w, "recent signups", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) RecentLogins(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryLimit(r, defaultRecentLimit)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	logins, err := h.store.RecentLogins(r.Context(), limit)
	if err != nil {
		h.fail(w, "recent logins", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logins)
}

func (h *Handler) RecentPredictions(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryLimit(r, defaultRecentLimit)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	preds, err := h.store.ListPredictions(r.Context(), storage.PredictionFilter{Limit: limit})
	if err != nil {
		h.fail(w, "recent predictions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preds)
}

// resultForStatus maps the dashboard's status filter onto a result label.
func resultForStatus(status string) (string, bool) {
	switch status {
	case "", "all":
		return "", true
	case "repaid", "approved":
		return models.ResultRepaid, true
	case "at_risk", "rejected":
		return models.ResultAtRisk, true
	}
	return "", false
}

// Predictions lists every prediction, optionally filtered by ?status= and ?limit=.
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	result, ok := resultForStatus(r.URL.Query().Get("status"))
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "status must be one of all, repaid, at_risk")
		return
	}
	limit, err := httpx.QueryLimit(r, 0)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	preds, err := h.store.ListPredictions(r.Context(), storage.PredictionFilter{
		Email:  auth.NormalizeEmail(r.URL.Query().Get("email")),
		Result: result,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, "list predictions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preds)
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	target := auth.NormalizeEmail(r.PathValue("email"))
	if me, _ := auth.EmailFromContext(r.Context()); me == target {
		httpx.JSON(w, http.StatusBadRequest, actionResponse{Message: "Admins cannot delete their own account"})
		return
	}

	err := h.store.DeleteUser(r.Context(), target)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, actionResponse{Message: "User not Found"})
		return
	}
	if err != nil {
		h.fail(w, "delete user", err)
		return
	}
	h.log.Info("user deleted", zap.String("email", target))
	httpx.JSON(w, http.StatusOK, actionResponse{Success: true, Message: "User deleted"})
}

// ResetPredictions clears one user's prediction history.
func (h *Handler) ResetPredictions(w http.ResponseWriter, r *http.Request) {
	target := auth.NormalizeEmail(r.PathValue("email"))
	if _, err := h.store.UserByEmail(r.Context(), target); errors.Is(err, storage.ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, actionResponse{Message: "User not Found"})
		return
	} else if err != nil {
		h.fail(w, "reset predictions", err)
		return
	}

	n, err := h.store.DeletePredictionsByEmail(r.Context(), target)
	if err != nil {
		h.fail(w, "reset predictions", err)
		return
	}
	h.log.Info("predictions reset", zap.String("email", target), zap.Int64("rows", n))
	httpx.JSON(w, http.StatusOK, actionResponse{Success: true, Message: "Predictions reset"})
}

func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListFeedback(r.Context())
	if err != nil {
		h.fail(w, "list feedback", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

type Overview struct {
	Users             int64              `json:"users"`
	Predictions       int64              `json:"predictions"`
	Feedback          int64              `json:"feedback"`
	Repaid            int64              `json:"repaid"`
	AtRisk            int64              `json:"at_risk"`
	Breakdown         map[string]int64   `json:"breakdown"`
	AverageConfidence float64            `json:"average_confidence"`
	Daily             []storage.DayCount `json:"daily"`
}

// Overview gathers the dashboard aggregates concurrently.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	var o Overview
	now := h.now().UTC()
	since := now.Truncate(24*time.Hour).AddDate(0, 0, -(overviewDays - 1))

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		o.Users, err = h.store.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.Predictions, err = h.store.CountPredictions(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.Feedback, err = h.store.CountFeedback(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.Breakdown, err = h.store.PredictionBreakdown(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.AverageConfidence, err = h.store.AverageConfidence(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.Daily, err = h.store.DailyPredictionCounts(ctx, since, now)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, "overview", err)
		return
	}

	o.Repaid = o.Breakdown[models.ResultRepaid]
	o.AtRisk = o.Breakdown[models.ResultAtRisk]
	o.AverageConfidence = math.Round(o.AverageConfidence*100) / 100
	httpx.JSON(w, http.StatusOK, o)
}

type ModelStatsResponse struct {
	Model string `json:"model"`
	*prediction.Stats
	TotalPredictions int64 `json:"total_prediction"`
}

// ModelStats reports the active model, its metrics when known, and the live prediction count.
func (h *Handler) ModelStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.CountPredictions(r.Context())
	if err != nil {
		h.fail(w, "model stats", err)
		return
	}
	resp := ModelStatsResponse{Model: h.model.Name(), TotalPredictions: total}
	if sr, ok := h.model.(prediction.StatsReporter); ok {
		stats := sr.Stats()
		resp.Stats = &stats
	}
	httpx.JSON(w, http.StatusOK, resp)
}
