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

	"github.com/redis/go-redis/v9"

	"github.com/portfolio/backend/internal/cipher"
	"github.com/portfolio/backend/internal/config"
	"github.com/portfolio/backend/internal/handler"
	"github.com/portfolio/backend/internal/logging"
	"github.com/portfolio/backend/internal/notify"
	"github.com/portfolio/backend/internal/ratelimit"
	"github.com/portfolio/backend/internal/repository"
	"github.com/portfolio/backend/internal/service"
	"github.com/portfolio/backend/pkg/auth"
	pkgstripe "github.com/portfolio/backend/pkg/stripe"
)

// store bundles the repositories selected by STORAGE.
type store struct {
	db       repository.DB
	messages repository.MessageRepository
	users    repository.UserRepository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}
	logging.Setup(cfg.LogLevel)

	fieldCipher, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		logging.Fatal("cipher init failed", "error", err)
	}
	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logging.Fatal("jwt issuer init failed", "error", err)
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, fieldCipher)
	if err != nil {
		logging.Fatal("storage init failed", "error", err, "storage", cfg.Storage)
	}
	defer st.close()

	limiter, closeLimiter := newLimiter(ctx, cfg)
	defer closeLimiter()

	sender := newSender(ctx, cfg)

	router := handler.NewRouter(handler.Deps{
		DB: st.db,
		Messages: service.NewMessageService(st.messages, sender,
			service.WithExportLimit(cfg.ExportLimit)),
		Auth:        service.NewAuthService(st.users, 0),
		Donations:   service.NewDonationService(pkgstripe.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret), cfg.FrontendURL),
		Tokens:      tokens,
		Limiter:     limiter,
		FrontendURL: cfg.FrontendURL,

		TrustedProxies: cfg.RateLimit.TrustedProxies,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, c repository.FieldCipher) (*store, error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		msgs := repository.NewMemoryMessageRepository(c)
		return &store{db: msgs, messages: msgs, users: repository.NewMemoryUserRepository(), close: func() {}}, nil
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &store{
		db:       pool,
		messages: repository.NewPgMessageRepository(pool, c),
		users:    repository.NewPgUserRepository(pool),
		close:    pool.Close,
	}, nil
}

// newLimiter prefers Redis so replicas share counters. An unreachable Redis
// at startup falls back to the in-process limiter.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func()) {
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rdb.Ping(pingCtx).Err()
		if err == nil {
			slog.Info("rate limiter using redis", "addr", cfg.Redis.Addr)
			return ratelimit.NewRedis(rdb, "ratelimit:", cfg.RateLimit.PerMinute, time.Minute), func() { _ = rdb.Close() }
		}
		slog.Warn("redis unreachable, using in-memory rate limiter", "error", err)
		_ = rdb.Close()
	}
	m := ratelimit.NewMemory(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	return m, m.Close
}

func newSender(ctx context.Context, cfg *config.Config) notify.Sender {
	if !cfg.SES.Enabled() {
		slog.Info("SES not configured, notifications go to the log")
		return notify.LogSender{}
	}
	ses, err := notify.NewSES(ctx, notify.SESConfig{
		Region:    cfg.SES.Region,
		AccessKey: cfg.SES.AccessKey,
		SecretKey: cfg.SES.SecretKey,
		From:      cfg.SES.From,
		To:        cfg.SES.NotifyTo,
	})
	if err != nil {
		slog.Error("SES init failed, notifications go to the log", "error", err)
		return notify.LogSender{}
	}
	return ses
}
