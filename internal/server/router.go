package server

import (
	"net/http"

	"loan-predictor/internal/admin"
	"loan-predictor/internal/auth"
	"loan-predictor/internal/events"
	"loan-predictor/internal/feedback"
	"loan-predictor/internal/httpx"
	"loan-predictor/internal/logging"
	"loan-predictor/internal/prediction"
	"loan-predictor/internal/storage"

	"go.uber.org/zap"
)

type Deps struct {
	Store       *storage.Store
	Auth        *auth.Service
	Predictions *prediction.Service
	Events      events.Publisher
	Log         *zap.Logger

	// nil disables the provider
	Google auth.GoogleVerifier
	GitHub auth.GitHubExchanger

	CORSOrigins    []string
	HistoryByEmail bool
}

func SetupRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}

	mux := http.NewServeMux()
	a := d.Auth

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("POST /signup", auth.SignupHandler(a))
	mux.Handle("POST /login", auth.LoginHandler(a))
	mux.Handle("POST /admin-login", auth.AdminLoginHandler(a))
	mux.Handle("POST /google-login", auth.GoogleLoginHandler(a, d.Google))
	mux.Handle("POST /github/callback", auth.GitHubCallbackHandler(a, d.GitHub))

	p := d.Predictions
	mux.Handle("POST /predict", a.Required(prediction.PredictHandler(p)))
	mux.Handle("GET /history", a.Optional(prediction.HistoryHandler(p, d.HistoryByEmail)))
	mux.Handle("DELETE /history", a.Optional(prediction.ClearHistoryHandler(p, d.HistoryByEmail)))
	mux.Handle("GET /dashboard", a.Required(prediction.DashboardHandler(p)))

	mux.Handle("POST /api/feedback", feedback.SubmitHandler(d.Store, d.Events, d.Log))

	ad := admin.NewHandler(d.Store, p.Model(), d.Log)
	adminOnly := func(h http.HandlerFunc) http.Handler { return a.RequireAdmin(h) }

	mux.Handle("GET /admin/dashboard/recent-signups", adminOnly(ad.RecentSignups))
	mux.Handle("GET /admin/dashboard/recent-logins", adminOnly(ad.RecentLogins))
	mux.Handle("GET /admin/dashboard/recent-predictions", adminOnly(ad.RecentPredictions))

	mux.Handle("GET /api/admin/predictions", adminOnly(ad.Predictions))
	mux.Handle("GET /api/admin/users", adminOnly(ad.Users))
	mux.Handle("DELETE /api/admin/users/delete/{email}", adminOnly(ad.DeleteUser))
	mux.Handle("PUT /api/admin/users/reset/{email}", adminOnly(ad.ResetPredictions))
	mux.Handle("PUT /api/admin/users/reset-predictions/{email}", adminOnly(ad.ResetPredictions))
	mux.Handle("GET /api/admin/feedback", adminOnly(ad.Feedback))
	mux.Handle("GET /api/admin/overview", adminOnly(ad.Overview))
	mux.HandleFunc("GET /api/admin/model-stats", ad.ModelStats)

	return logging.Middleware(d.Log, httpx.CORS(d.CORSOrigins, mux))
}
