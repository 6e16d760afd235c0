package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/readersync/config"
	"github.com/kevinaaaquil/readersync/handlers"
	"github.com/kevinaaaquil/readersync/middleware"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/ratelimit"
	"github.com/kevinaaaquil/readersync/reconcile"
	"github.com/kevinaaaquil/readersync/service"
	"github.com/kevinaaaquil/readersync/store"
	"github.com/kevinaaaquil/readersync/utils"
	"github.com/kevinaaaquil/readersync/verification"
	"github.com/redis/go-redis/v9"
)

// backend is satisfied by both the Mongo and the in-memory store.
type backend interface {
	store.RecordStore
	store.TokenStore
	store.EmailLogStore
	store.BackupStore
	store.UserStore
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal("config", err)
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogFile)
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}
	cfg.LogSummary()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db backend
	switch cfg.StoreBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		db = store.NewMemory()
	default:
		mongoDB, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			fatal("mongodb", err)
		}
		defer func() {
			if err := mongoDB.Disconnect(context.Background()); err != nil {
				slog.Error("mongodb disconnect", "error", err)
			}
		}()
		if err := mongoDB.EnsureIndexes(ctx); err != nil {
			fatal("mongodb indexes", err)
		}
		db = mongoDB
	}

	var sendLimiter, verifyLimiter middleware.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			fatal("redis", err)
		}
		send, err := ratelimit.NewFixedWindowLimiter(rdb, "readersync:ratelimit:send", cfg.SendCodeRatePerMinute, time.Minute)
		if err != nil {
			fatal("send limiter", err)
		}
		verify, err := ratelimit.NewFixedWindowLimiter(rdb, "readersync:ratelimit:verify", cfg.VerifyRatePerMinute, time.Minute)
		if err != nil {
			fatal("verify limiter", err)
		}
		sendLimiter, verifyLimiter = send, verify
	} else {
		slog.Warn("REDIS_ADDR not set; verification endpoints are not rate limited")
	}

	notifier := &service.CodeNotifier{Logs: db, Brand: cfg.MailBrand, BaseURL: cfg.PublicBaseURL}
	if cfg.SMTPHost != "" {
		notifier.Mailer = service.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		slog.Warn("SMTP_HOST not set; verification codes are written to the log")
		notifier.Mailer = service.LogMailer{}
		notifier.DevMode = true
	}

	var backups *service.BackupService
	var archiver reconcile.Archiver
	if cfg.S3Bucket != "" {
		archive, err := service.NewS3Archive(ctx, service.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			fatal("s3", err)
		}
		backups = &service.BackupService{Objects: archive, Backups: db, Retention: cfg.BackupRetention}
		archiver = backups
	} else {
		slog.Info("AWS_S3_BUCKET not set; progress backups are disabled")
	}

	tokens := verification.NewService(db)
	go tokens.RunCleanup(ctx, cfg.TokenCleanupInterval)

	reconciler := reconcile.New(reconcile.Config{
		Records:  db,
		Tokens:   tokens,
		Notifier: notifier,
		Archiver: archiver,
	})

	verificationHandler := &handlers.VerificationHandler{Reconciler: reconciler, Tokens: tokens}
	progressHandler := &handlers.ProgressHandler{Reconciler: reconciler}
	adminHandler := &handlers.AdminHandler{Tokens: tokens, Backups: backups}
	authHandler := &handlers.AuthHandler{
		Users:        db,
		JWTSecret:    cfg.JWTSecret,
		DefaultEmail: cfg.AuthEmail,
		DefaultPass:  cfg.AuthPass,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.AllowAll())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"welcome to readersync."}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Route("/verification", func(r chi.Router) {
			r.With(middleware.RateLimit(sendLimiter, "Too many verification requests. Please try again later.")).
				Post("/send", verificationHandler.Send)
			r.With(middleware.RateLimit(verifyLimiter, "Too many verification attempts. Please try again later.")).
				Post("/verify", verificationHandler.Verify)
			r.Get("/check", verificationHandler.Check)
		})

		r.Post("/user-progress/sync", progressHandler.Sync)
		r.Get("/user-progress/sync", progressHandler.Fetch)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Get("/tokens/stats", adminHandler.TokenStats)
			r.Post("/tokens/cleanup", adminHandler.CleanupTokens)
			r.Get("/backups", adminHandler.ListBackups)
			r.Get("/backups/{id}/download", adminHandler.DownloadBackup)
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http server", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
