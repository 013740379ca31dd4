package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	rediscache "github.com/vncsmyrnk/tessera/internal/adapters/cache/redis"
	"github.com/vncsmyrnk/tessera/internal/adapters/event"
	"github.com/vncsmyrnk/tessera/internal/adapters/handler/http"
	"github.com/vncsmyrnk/tessera/internal/adapters/metrics"
	"github.com/vncsmyrnk/tessera/internal/adapters/oauth/google"
	"github.com/vncsmyrnk/tessera/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/tessera/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/tessera/internal/adapters/session"
	"github.com/vncsmyrnk/tessera/internal/config"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
	"github.com/vncsmyrnk/tessera/internal/core/services"
)

type repositories struct {
	elections ports.ElectionRepository
	tokens    ports.TokenRepository
	ballots   ports.BallotRepository
	users     ports.UserRepository
	auth      ports.AuthRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := openRepositories(cfg)
	if err != nil {
		return err
	}
	defer closeRepos()

	var cache ports.ResultCache
	if cfg.RedisURL != "" {
		resultCache, err := rediscache.NewResultCache(ctx, cfg.RedisURL, cfg.ResultCacheTTL)
		if err != nil {
			return err
		}
		defer resultCache.Close()
		cache = resultCache
		logger.Info("result cache enabled")
	}

	var publisher ports.ResultPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		logger.Info("result events enabled", slog.String("topic", cfg.KafkaTopic))
	}

	tallyMetrics := metrics.NewTallyMetrics("tessera")
	sessions := session.NewJWTIssuer(cfg.JWTSecret, cfg.BallotSessionTTL)

	authSvc := services.NewAuthService(repos.users, repos.auth, google.NewVerifier(), cfg.JWTSecret, cfg.GoogleClientID, logger)
	userSvc := services.NewUserService(repos.users)
	resultSvc := services.NewResultService(repos.elections, repos.ballots, cache, publisher, tallyMetrics, logger)
	electionSvc := services.NewElectionService(repos.elections, repos.tokens, repos.ballots, resultSvc, logger)
	voteSvc := services.NewVoteService(repos.elections, repos.tokens, repos.ballots, sessions, tallyMetrics, logger)

	handler := http.NewHandler(http.Handlers{
		Auth:     http.NewAuthHandler(authSvc, cfg.AuthRedirectURL, cfg.CookieDomain, stdhttp.SameSiteLaxMode),
		User:     http.NewUserHandler(userSvc),
		Election: http.NewElectionHandler(electionSvc, resultSvc),
		Vote:     http.NewVoteHandler(voteSvc),
		Public:   http.NewPublicHandler(electionSvc, resultSvc),
		Metrics:  tallyMetrics.Handler(),
	}, authSvc)
	server := &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr), slog.String("storage", cfg.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func openRepositories(cfg config.Config) (repositories, func(), error) {
	if cfg.Storage == config.StorageMemory {
		store := memory.NewStore()
		return repositories{
			elections: store,
			tokens:    store,
			ballots:   store,
			users:     store.Users(),
			auth:      store,
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		return repositories{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return repositories{}, nil, err
	}

	return repositories{
		elections: postgres.NewElectionRepository(db),
		tokens:    postgres.NewTokenRepository(db),
		ballots:   postgres.NewBallotRepository(db),
		users:     postgres.NewUserRepository(db),
		auth:      postgres.NewAuthRepository(db),
	}, func() { db.Close() }, nil
}
