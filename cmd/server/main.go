package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"launchline/config"
	_ "launchline/docs"
	"launchline/internal/adapters/analytics"
	authadapter "launchline/internal/adapters/auth"
	emailadapter "launchline/internal/adapters/email"
	"launchline/internal/adapters/events"
	httpdelivery "launchline/internal/delivery/http"
	"launchline/internal/delivery/http/controllers"
	"launchline/internal/delivery/http/middleware"
	"launchline/internal/domain"
	"launchline/internal/jobs"
	"launchline/internal/repository/postgres"
	"launchline/internal/scheduler"
	"launchline/internal/services"
)

const (
	bcryptCost     = 12
	serviceTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := config.NewLogger()
	logger.Info("starting launchline", "env", cfg.Environment, "port", cfg.Port)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("database connection established")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	loginCodeRepo := postgres.NewLoginCodeRepository(db)
	workspaceRepo := postgres.NewWorkspaceRepository(db)
	membershipRepo := postgres.NewMembershipRepository(db)
	inviteRepo := postgres.NewWorkspaceInviteRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Adapters
	hasher := authadapter.NewBcryptHasher(bcryptCost)
	tokenIssuer, tokenVerifier := authadapter.NewJWTTokens(cfg.JWTSecret)

	mailer, err := emailadapter.NewMailer(emailadapter.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: emailadapter.SESConfig{
			Region:             cfg.SESRegion,
			AccessKeyID:        cfg.SESAccessKeyID,
			SecretAccessKey:    cfg.SESSecretAccessKey,
			InsecureSkipVerify: cfg.SESInsecureSkipVerify,
		},
	})
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}

	var sink domain.AnalyticsSink
	if cfg.AnalyticsEndpoint != "" {
		sink = analytics.NewHTTPSink(nil, cfg.AnalyticsEndpoint, cfg.AnalyticsAPIKey, logger)
	} else {
		sink = analytics.NewNoopSink()
	}

	var publisher domain.EventPublisher
	if cfg.EventWebhookURL != "" {
		publisher = events.NewWebhookPublisher(nil, cfg.EventWebhookURL)
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	// Services
	emailSvc := services.NewEmailService(mailer, emailadapter.NewTemplateRenderer())
	authSvc := services.NewAuthService(userRepo, loginCodeRepo, hasher, tokenIssuer, cfg.TokenExpiry, emailSvc, sink)
	workspaceSvc := services.NewWorkspaceService(
		workspaceRepo, membershipRepo, inviteRepo, userRepo,
		emailSvc, sink, logger, cfg.InviteBaseURL, serviceTimeout,
	)

	// Background jobs
	jobRunner := jobs.NewJobRunner(outboxRepo, membershipRepo, loginCodeRepo, publisher, logger)
	sched := scheduler.NewScheduler(jobRunner, scheduler.Config{
		DispatchOutbox:  cfg.CronDispatchOutbox,
		ExpireInvites:   cfg.CronExpireInvites,
		PurgeLoginCodes: cfg.CronPurgeLoginCodes,
	}, logger)
	sched.Start()
	defer sched.Stop()

	// HTTP
	authController := controllers.NewAuthController(logger, authSvc)
	workspaceController := controllers.NewWorkspaceController(logger, workspaceSvc)
	requireAuth := middleware.RequireAuth(tokenVerifier, logger)
	mux := httpdelivery.NewRouter(authController, workspaceController, requireAuth)

	handler := middleware.LoggingMiddleware(logger,
		middleware.CORS(cfg.CORSAllowedOrigins, mux))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
