package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chattyhq/export-service/internal/adapters/archive"
	cacheadapter "github.com/chattyhq/export-service/internal/adapters/cache"
	httpadapter "github.com/chattyhq/export-service/internal/adapters/http"
	"github.com/chattyhq/export-service/internal/adapters/memory"
	"github.com/chattyhq/export-service/internal/adapters/postgres"
	"github.com/chattyhq/export-service/internal/adapters/providers"
	"github.com/chattyhq/export-service/internal/adapters/security"
	"github.com/chattyhq/export-service/internal/adapters/sweep"
	"github.com/chattyhq/export-service/internal/application"
	"github.com/chattyhq/export-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweep.Sweeper
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping export service", "http_port", cfg.HTTPPort)

	cleanups := make([]func(), 0, 2)

	var dataSource ports.ChatDataSource
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := pool.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		cleanups = append(cleanups, func() { _ = sqlDB.Close() })
		dataSource = postgres.NewChatDataSource(pool)
	} else {
		// LoadConfig only lets this branch through when allow_sample_data is
		// set; the export path never falls back to fixtures implicitly.
		logger.Warn("using sample chat data source for local/dev runtime")
		dataSource = memory.NewSampleDataSource()
	}

	var (
		sessions ports.SessionRepository
		throttle ports.ThrottleStore
	)
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			runCleanups(cleanups)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		sessions = cacheadapter.NewRedisSessionStore(redisClient)
		throttle = cacheadapter.NewRedisThrottleStore(redisClient)
	} else {
		logger.Warn("using in-memory session registry; sessions will not survive a restart")
		sessions = memory.NewSessionStore()
		throttle = memory.NewThrottleStore()
	}

	tokens, err := security.NewExportTokenIssuer(cfg.JWTKeyID, cfg.TokenTTL, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			runCleanups(cleanups)
			return nil, fmt.Errorf("init token issuer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokens, err = security.NewEphemeralTokenIssuer(cfg.JWTKeyID, cfg.TokenTTL)
		if err != nil {
			runCleanups(cleanups)
			return nil, fmt.Errorf("init ephemeral token issuer: %w", err)
		}
	}

	twilioCfg := providers.TwilioConfig{
		BaseURL:    cfg.TwilioBaseURL,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		ServiceSID: cfg.TwilioServiceSID,
		Timeout:    cfg.ProviderTimeout,
	}
	var otp ports.OTPProvider
	if twilioCfg.IsConfigured() {
		otp = providers.NewTwilioVerifyProvider(twilioCfg)
	} else {
		logger.Warn("sms provider not configured; verification endpoints will answer 503")
	}

	mailerCfg := providers.MailerConfig{
		Endpoint: cfg.MailerEndpoint,
		APIKey:   cfg.MailerAPIKey,
		From:     cfg.MailerFrom,
		Timeout:  cfg.ProviderTimeout,
	}
	var notifier ports.ExportNotifier
	if mailerCfg.IsConfigured() {
		notifier = providers.NewHTTPMailer(mailerCfg)
	} else {
		logger.Warn("mail relay not configured; export requests will fail")
	}

	archiver := archive.NewPool(archive.NewZipArchiver(dataSource, cfg.ExportDir), cfg.ArchiveWorkers)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			TokenTTL:              cfg.TokenTTL,
			VerificationBaseURL:   cfg.VerificationBaseURL,
			OTPRateLimitThreshold: cfg.OTPRateLimitThreshold,
			OTPRateLimitWindow:    cfg.OTPRateLimitWindow,
		},
		Sessions: sessions,
		Tokens:   tokens,
		Archiver: archiver,
		OTP:      otp,
		Notifier: notifier,
		Throttle: throttle,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweeper := sweep.NewSweeper(logger, sessions, cfg.SweepInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		sweeper:    sweeper,
		cleanupFn: func(context.Context) {
			runCleanups(cleanups)
		},
	}, nil
}

func runCleanups(cleanups []func()) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// RunAPI serves HTTP until a shutdown signal, running the session sweeper in
// the background alongside it.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		_ = r.sweeper.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunSweeper runs only the expiry sweep loop, for deployments that prefer a
// dedicated eviction process.
func (r *Runtime) RunSweeper(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("session sweeper started", "interval", r.cfg.SweepInterval.String())
	err := r.sweeper.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
