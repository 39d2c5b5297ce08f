package storage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"loan-predictor/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := s.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "h"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestUserByEmail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.CreateUser(ctx, &models.User{Email: "b@example.com", PasswordHash: "h", IsAdmin: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	u, err := s.UserByEmail(ctx, "b@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !u.IsAdmin || u.PasswordHash != "h" || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestUpdatePasswordHashAndSetAdmin(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.UpdatePasswordHash(ctx, "ghost@example.com", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetAdmin(ctx, "ghost@example.com", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.CreateUser(ctx, &models.User{Email: "c@example.com", PasswordHash: "old"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, "c@example.com", "new"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	if err := s.SetAdmin(ctx, "c@example.com", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	u, _ := s.UserByEmail(ctx, "c@example.com")
	if u.PasswordHash != "new" || !u.IsAdmin {
		t.Fatalf("unexpected user %+v", u)
	}

	ok, err := s.HasAdmin(ctx)
	if err != nil || !ok {
		t.Fatalf("expected an admin, got %v %v", ok, err)
	}
}

func TestRecentSignups_SkipsAdminsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	users := []models.User{
		{Email: "old@example.com", CreatedAt: base},
		{Email: "admin@example.com", IsAdmin: true, CreatedAt: base.Add(2 * time.Hour)},
		{Email: "new@example.com", CreatedAt: base.Add(time.Hour)},
	}
	for i := range users {
		if err := s.CreateUser(ctx, &users[i]); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	got, err := s.RecentSignups(ctx, 5)
	if err != nil {
		t.Fatalf("recent signups: %v", err)
	}
	if len(got) != 2 || got[0].Email != "new@example.com" || got[1].Email != "old@example.com" {
		t.Fatalf("unexpected signups %+v", got)
	}

	got, _ = s.RecentSignups(ctx, 1)
	if len(got) != 1 {
		t.Fatalf("limit ignored: %d rows", len(got))
	}

	all, _ := s.ListUsers(ctx)
	if len(all) != 3 || all[0].Email != "admin@example.com" {
		t.Fatalf("unexpected users %+v", all)
	}
	if n, _ := s.CountUsers(ctx); n != 3 {
		t.Fatalf("expected 3 users, got %d", n)
	}
}

func TestDeleteUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.DeleteUser(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.CreateUser(ctx, &models.User{Email: "d@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.DeleteUser(ctx, "d@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.UserByEmail(ctx, "d@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user still present: %v", err)
	}
}

func TestRecordLogin(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	empty, err := s.RecentLogins(ctx, 5)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", empty, err)
	}

	for _, m := range []string{"password", "google", "github"} {
		if err := s.RecordLogin(ctx, "e@example.com", m); err != nil {
			t.Fatalf("record login: %v", err)
		}
	}
	got, err := s.RecentLogins(ctx, 2)
	if err != nil {
		t.Fatalf("recent logins: %v", err)
	}
	if len(got) != 2 || got[0].Method != "github" {
		t.Fatalf("unexpected logins %+v", got)
	}
}

func TestPredictions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	preds := []*models.Prediction{
		{Email: "p@example.com", Input: models.FeatureVector{"fico": 700.0}, Result: models.ResultRepaid, Confidence: 80, CreatedAt: base},
		{Email: "p@example.com", Input: models.FeatureVector{"fico": 600.0}, Result: models.ResultAtRisk, Confidence: 60, CreatedAt: base.Add(time.Minute)},
		{Email: "q@example.com", Input: models.FeatureVector{"fico": 750.0}, Result: models.ResultRepaid, Confidence: 90, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, p := range preds {
		if err := s.CreatePrediction(ctx, p); err != nil {
			t.Fatalf("create prediction: %v", err)
		}
		if p.ID == "" {
			t.Fatal("expected generated id")
		}
	}

	mine, err := s.PredictionsByEmail(ctx, "p@example.com")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if len(mine) != 2 || mine[0].Result != models.ResultAtRisk {
		t.Fatalf("unexpected history %+v", mine)
	}
	if mine[1].Input["fico"] != 700.0 {
		t.Fatalf("input not round-tripped: %+v", mine[1].Input)
	}

	repaid, _ := s.ListPredictions(ctx, PredictionFilter{Result: models.ResultRepaid})
	if len(repaid) != 2 {
		t.Fatalf("expected 2 repaid, got %d", len(repaid))
	}

	breakdown, err := s.PredictionBreakdown(ctx)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if breakdown[models.ResultRepaid] != 2 || breakdown[models.ResultAtRisk] != 1 {
		t.Fatalf("unexpected breakdown %v", breakdown)
	}

	avg, err := s.AverageConfidence(ctx)
	if err != nil || math.Abs(avg-230.0/3) > 1e-9 {
		t.Fatalf("unexpected average %v %v", avg, err)
	}

	n, err := s.DeletePredictionsByEmail(ctx, "p@example.com")
	if err != nil || n != 2 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	if total, _ := s.CountPredictions(ctx); total != 1 {
		t.Fatalf("expected 1 prediction left, got %d", total)
	}
}

func TestAverageConfidence_Empty(t *testing.T) {
	s := setupTestStore(t)
	avg, err := s.AverageConfidence(context.Background())
	if err != nil || avg != 0 {
		t.Fatalf("expected 0, got %v %v", avg, err)
	}
}

func TestDailyPredictionCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, at := range []time.Time{today.Add(time.Minute), today.Add(2 * time.Minute), today.AddDate(0, 0, -2).Add(time.Hour)} {
		p := &models.Prediction{Email: "x@example.com", Result: models.ResultRepaid, Confidence: 70, CreatedAt: at}
		if err := s.CreatePrediction(ctx, p); err != nil {
			t.Fatalf("create prediction: %v", err)
		}
	}

	days, err := s.DailyPredictionCounts(ctx, today.AddDate(0, 0, -3), today.Add(time.Hour))
	if err != nil {
		t.Fatalf("daily counts: %v", err)
	}
	if len(days) != 4 {
		t.Fatalf("expected 4 days, got %d: %+v", len(days), days)
	}
	want := []int64{0, 1, 0, 2}
	for i, d := range days {
		if d.Count != want[i] {
			t.Fatalf("day %s: want %d, got %d", d.Day, want[i], d.Count)
		}
	}
}

func TestDailyPredictionCounts_FirstDayFromMidnight(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -2)

	stamps := []time.Time{
		time.Date(2026, 3, 13, 1, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 12, 23, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC),
	}
	for _, at := range stamps {
		p := &models.Prediction{Email: "x@example.com", Result: models.ResultRepaid, Confidence: 70, CreatedAt: at}
		if err := s.CreatePrediction(ctx, p); err != nil {
			t.Fatalf("create prediction: %v", err)
		}
	}

	days, err := s.DailyPredictionCounts(ctx, since, now)
	if err != nil {
		t.Fatalf("daily counts: %v", err)
	}
	if len(days) != 3 || days[0].Day != "2026-03-13" || days[2].Day != "2026-03-15" {
		t.Fatalf("unexpected window %+v", days)
	}
	want := []int64{1, 0, 0}
	for i, d := range days {
		if d.Count != want[i] {
			t.Fatalf("day %s: want %d, got %d", d.Day, want[i], d.Count)
		}
	}
}

func TestFeedback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second"} {
		f := &models.Feedback{Name: "N", Email: "f@example.com", Message: msg}
		if err := s.CreateFeedback(ctx, f); err != nil {
			t.Fatalf("create feedback: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	items, err := s.ListFeedback(ctx)
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if len(items) != 2 || items[0].Message != "second" {
		t.Fatalf("unexpected feedback %+v", items)
	}
	if n, _ := s.CountFeedback(ctx); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}
