package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	rediscache "github.com/vncsmyrnk/tessera/internal/adapters/cache/redis"
	"github.com/vncsmyrnk/tessera/internal/adapters/metrics"
	"github.com/vncsmyrnk/tessera/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/tessera/internal/config"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
	"github.com/vncsmyrnk/tessera/internal/core/services"
)

const exitMismatch = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	flag.StringVar(&cfg.PostgresHost, "db-host", cfg.PostgresHost, "Database host")
	flag.StringVar(&cfg.PostgresPort, "db-port", cfg.PostgresPort, "Database port")
	flag.StringVar(&cfg.PostgresUser, "db-user", cfg.PostgresUser, "Database user")
	flag.StringVar(&cfg.PostgresPassword, "db-pass", cfg.PostgresPassword, "Database password")
	flag.StringVar(&cfg.PostgresDB, "db-name", cfg.PostgresDB, "Database name")
	timeout := flag.Duration("timeout", 5*time.Minute, "Job timeout")
	flag.Parse()

	logger := cfg.NewLogger(os.Stdout)

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to reach database", slog.Any("error", err))
		os.Exit(1)
	}

	var cache ports.ResultCache
	if cfg.RedisURL != "" {
		resultCache, err := rediscache.NewResultCache(ctx, cfg.RedisURL, cfg.ResultCacheTTL)
		if err != nil {
			logger.Error("failed to connect result cache", slog.Any("error", err))
			os.Exit(1)
		}
		defer resultCache.Close()
		cache = resultCache
	}

	elections := postgres.NewElectionRepository(db)
	ballots := postgres.NewBallotRepository(db)
	tallyMetrics := metrics.NewTallyMetrics("tessera")

	results := services.NewResultService(elections, ballots, cache, nil, tallyMetrics, logger)
	audit := services.NewAuditService(elections, ballots, results, cache, tallyMetrics, logger)

	logger.Info("starting receipt audit")

	report, err := audit.VerifyAllClosed(ctx)
	if err != nil {
		logger.Error("audit failed", slog.Any("error", err))
		os.Exit(1)
	}

	if !report.Clean() {
		for electionID, ballotIDs := range services.MismatchesByElection(report.Mismatches) {
			logger.Error("receipt mismatch",
				slog.String("election_id", electionID.String()),
				slog.Any("ballot_ids", ballotIDs),
			)
		}
		for _, drift := range report.Drift {
			logger.Error("cached result drift",
				slog.String("election_id", drift.ElectionID.String()),
				slog.Int("cached_ballots", drift.CachedBallots),
				slog.Int("counted_ballots", drift.CountedBallots),
				slog.Any("cached_winners", drift.CachedWinners),
				slog.Any("counted_winners", drift.CountedWinners),
			)
		}
		os.Exit(exitMismatch)
	}

	logger.Info("receipt audit completed", slog.Int("mismatches", 0))
}
