package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"loan-predictor/internal/auth"
	"loan-predictor/internal/config"
	"loan-predictor/internal/events"
	"loan-predictor/internal/logging"
	"loan-predictor/internal/prediction"
	"loan-predictor/internal/server"
	"loan-predictor/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	envFile string
	verbose bool

	adminEmail    string
	adminPassword string
)

var rootCmd = &cobra.Command{
	Use:          "loan-service",
	Short:        "Loan repayment prediction API",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var createAdminCmd = &cobra.Command{
	Use:     "create-admin",
	Short:   "Create an admin account, or promote an existing one",
	Example: `  loan-service create-admin --email ops@example.com --password s3cret`,
	RunE:    runCreateAdmin,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, createAdminCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	log    *zap.Logger
	store  *storage.Store
	events events.Publisher
	auth   *auth.Service
}

func setup() (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver == "sqlite" && !strings.Contains(cfg.DBDSN, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	var pub events.Publisher = events.Nop{}
	if cfg.RabbitURL != "" {
		p, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			store.Close()
			return nil, err
		}
		pub = p
		log.Info("publishing events", zap.String("exchange", cfg.RabbitExchange))
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	return &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		events: pub,
		auth:   auth.NewService(store, tokens, pub, log),
	}, nil
}

func (a *app) close() {
	_ = a.events.Close()
	_ = a.store.Close()
	_ = a.log.Sync()
}

func buildModel(cfg config.Config) (prediction.Model, error) {
	switch cfg.ModelBackend {
	case "remote":
		m, err := prediction.NewRemoteModel(cfg.ModelURL, cfg.ModelTimeout)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "random":
		return prediction.NewRandomModel(uint64(time.Now().UnixNano())), nil
	default:
		def, err := prediction.LoadDefinition(cfg.ModelFile)
		if err != nil {
			return nil, err
		}
		m, err := prediction.NewFormulaModel(def)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	model, err := buildModel(cfg)
	if err != nil {
		return fmt.Errorf("model: %w", err)
	}

	seeded, err := a.auth.EnsureAdmin(cmd.Context(), cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if seeded {
		log.Warn("no admin found, created default admin", zap.String("email", cfg.AdminEmail))
	}

	deps := server.Deps{
		Store:          a.store,
		Auth:           a.auth,
		Predictions:    prediction.NewService(a.store, model, a.events, log),
		Events:         a.events,
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		HistoryByEmail: cfg.HistoryByEmail,
	}
	if cfg.GoogleClientID != "" {
		deps.Google = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		deps.GitHub = auth.NewGitHubClient(cfg.GitHubClientID, cfg.GitHubClientSecret)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("loan service listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("model", model.Name()),
			zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.auth.CreateAdmin(cmd.Context(), adminEmail, adminPassword); err != nil {
		return err
	}
	a.log.Info("admin ready", zap.String("email", auth.NormalizeEmail(adminEmail)))
	return nil
}
