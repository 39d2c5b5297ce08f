package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-predictor/internal/auth"
	"loan-predictor/internal/models"
	"loan-predictor/internal/prediction"
	"loan-predictor/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainModel struct{}

func (plainModel) Name() string { return "plain" }

func (plainModel) Predict(context.Context, prediction.Features) (prediction.Outcome, error) {
	return prediction.Outcome{}, nil
}

func setupTestHandler(t *testing.T, model prediction.Model) (*Handler, *storage.Store) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, model, nil), store
}

func seed(t *testing.T, store *storage.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	users := []models.User{
		{Email: "admin@example.com", IsAdmin: true, CreatedAt: base},
		{Email: "alice@example.com", CreatedAt: base.Add(time.Minute)},
		{Email: "bob@example.com", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range users {
		require.NoError(t, store.CreateUser(ctx, &users[i]))
	}

	preds := []models.Prediction{
		{Email: "alice@example.com", Result: models.ResultRepaid, Confidence: 90, CreatedAt: base.Add(3 * time.Minute)},
		{Email: "alice@example.com", Result: models.ResultAtRisk, Confidence: 70, CreatedAt: base.Add(4 * time.Minute)},
		{Email: "bob@example.com", Result: models.ResultRepaid, Confidence: 80.333, CreatedAt: base.Add(5 * time.Minute)},
	}
	for i := range preds {
		require.NoError(t, store.CreatePrediction(ctx, &preds[i]))
	}

	require.NoError(t, store.RecordLogin(ctx, "alice@example.com", auth.MethodPassword))
	require.NoError(t, store.CreateFeedback(ctx, &models.Feedback{Name: "Bob", Email: "bob@example.com", Message: "Nice"}))
}

func get(h http.HandlerFunc, target, email string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if email != "" {
		req = req.WithContext(auth.ContextWithEmail(req.Context(), email))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// withPath routes through a mux so {email} path values resolve.
func withPath(pattern string, h http.HandlerFunc, method, target, email string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	req := httptest.NewRequest(method, target, nil)
	if email != "" {
		req = req.WithContext(auth.ContextWithEmail(req.Context(), email))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestRecentActivity(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	seed(t, store)

	var signups []models.User
	w := get(h.RecentSignups, "/admin/dashboard/recent-signups", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&signups))
	require.Len(t, signups, 2)
	assert.Equal(t, "bob@example.com", signups[0].Email)

	var logins []models.LoginEvent
	w = get(h.RecentLogins, "/admin/dashboard/recent-logins", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&logins))
	require.Len(t, logins, 1)
	assert.Equal(t, auth.MethodPassword, logins[0].Method)

	var preds []models.Prediction
	w = get(h.RecentPredictions, "/admin/dashboard/recent-predictions?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&preds))
	require.Len(t, preds, 2)
	assert.Equal(t, "bob@example.com", preds[0].Email)

	w = get(h.RecentPredictions, "/admin/dashboard/recent-predictions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	zero := []struct {
		h      http.HandlerFunc
		target string
	}{
		{h.RecentSignups, "/admin/dashboard/recent-signups?limit=0"},
		{h.RecentLogins, "/admin/dashboard/recent-logins?limit=0"},
		{h.RecentPredictions, "/admin/dashboard/recent-predictions?limit=0"},
		{h.Predictions, "/api/admin/predictions?limit=0"},
	}
	for _, c := range zero {
		assert.Equal(t, http.StatusBadRequest, get(c.h, c.target, "").Code, c.target)
	}
}

func TestPredictions_StatusFilter(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	seed(t, store)

	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?status=all", 3},
		{"?status=repaid", 2},
		{"?status=approved", 2},
		{"?status=at_risk", 1},
		{"?status=rejected", 1},
		{"?email=Alice@example.com", 2},
		{"?status=repaid&limit=1", 1},
	}
	for _, c := range cases {
		w := get(h.Predictions, "/api/admin/predictions"+c.query, "")
		require.Equal(t, http.StatusOK, w.Code, c.query)
		var preds []models.Prediction
		require.NoError(t, json.NewDecoder(w.Body).Decode(&preds))
		assert.Len(t, preds, c.want, c.query)
	}

	w := get(h.Predictions, "/api/admin/predictions?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsersAndFeedback(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	seed(t, store)

	w := get(h.Users, "/api/admin/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&users))
	require.Len(t, users, 3)
	assert.NotContains(t, users[0], "PasswordHash")
	assert.NotContains(t, users[0], "password_hash")

	w = get(h.Feedback, "/api/admin/feedback", "")
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.Feedback
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "Nice", items[0].Message)
}

func TestDeleteUser(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	seed(t, store)
	const pattern = "DELETE /api/admin/users/delete/{email}"

	w := withPath(pattern, h.DeleteUser, http.MethodDelete, "/api/admin/users/delete/admin@example.com", "admin@example.com")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = withPath(pattern, h.DeleteUser, http.MethodDelete, "/api/admin/users/delete/ghost@example.com", "admin@example.com")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"User not Found"}`, w.Body.String())

	w = withPath(pattern, h.DeleteUser, http.MethodDelete, "/api/admin/users/delete/bob@example.com", "admin@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"User deleted"}`, w.Body.String())

	_, err := store.UserByEmail(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	preds, _ := store.PredictionsByEmail(context.Background(), "bob@example.com")
	assert.Len(t, preds, 1, "predictions outlive the account")
}

func TestResetPredictions(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	seed(t, store)
	const pattern = "PUT /api/admin/users/reset/{email}"

	w := withPath(pattern, h.ResetPredictions, http.MethodPut, "/api/admin/users/reset/ghost@example.com", "admin@example.com")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = withPath(pattern, h.ResetPredictions, http.MethodPut, "/api/admin/users/reset/alice@example.com", "admin@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Predictions reset"}`, w.Body.String())

	left, _ := store.PredictionsByEmail(context.Background(), "alice@example.com")
	assert.Empty(t, left)
	_, err := store.UserByEmail(context.Background(), "alice@example.com")
	assert.NoError(t, err, "account survives a reset")
}

func TestOverview(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	seed(t, store)

	w := get(h.Overview, "/api/admin/overview", "")
	require.Equal(t, http.StatusOK, w.Code)

	var o Overview
	require.NoError(t, json.NewDecoder(w.Body).Decode(&o))
	assert.EqualValues(t, 3, o.Users)
	assert.EqualValues(t, 3, o.Predictions)
	assert.EqualValues(t, 1, o.Feedback)
	assert.EqualValues(t, 2, o.Repaid)
	assert.EqualValues(t, 1, o.AtRisk)
	assert.Equal(t, 80.11, o.AverageConfidence)
	require.Len(t, o.Daily, overviewDays)

	var total int64
	for _, d := range o.Daily {
		total += d.Count
	}
	assert.EqualValues(t, 3, total)
}

func TestOverview_FirstDayCountsFromMidnight(t *testing.T) {
	h, store := setupTestHandler(t, plainModel{})
	now := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	firstDay := time.Date(2026, 10, 6, 1, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{firstDay, firstDay.Add(-2 * time.Hour)} {
		p := &models.Prediction{Email: "early@example.com", Result: models.ResultRepaid, Confidence: 75, CreatedAt: at}
		require.NoError(t, store.CreatePrediction(context.Background(), p))
	}

	w := get(h.Overview, "/api/admin/overview", "")
	require.Equal(t, http.StatusOK, w.Code)

	var o Overview
	require.NoError(t, json.NewDecoder(w.Body).Decode(&o))
	require.Len(t, o.Daily, overviewDays)
	assert.Equal(t, "2026-10-06", o.Daily[0].Day)
	assert.EqualValues(t, 1, o.Daily[0].Count)
	assert.Equal(t, "2026-10-19", o.Daily[overviewDays-1].Day)
	assert.EqualValues(t, 2, o.Predictions)
}

func TestModelStats(t *testing.T) {
	def, err := prediction.LoadDefinition("")
	require.NoError(t, err)
	formula, err := prediction.NewFormulaModel(def)
	require.NoError(t, err)

	h, store := setupTestHandler(t, formula)
	seed(t, store)

	w := get(h.ModelStats, "/api/admin/model-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "logistic-v1", body["model"])
	assert.Equal(t, 0.89, body["accuracy"])
	assert.Equal(t, "2025-07-12", body["last_trained"])
	assert.EqualValues(t, 3, body["total_prediction"])

	h, _ = setupTestHandler(t, plainModel{})
	w = get(h.ModelStats, "/api/admin/model-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "plain", body["model"])
	assert.NotContains(t, body, "accuracy")
}
