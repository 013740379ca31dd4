package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type auditService struct {
	elections ports.ElectionRepository
	ballots   ports.BallotRepository
	results   ports.ResultService
	cache     ports.ResultCache
	metrics   ports.Metrics
	logger    *slog.Logger
}

func NewAuditService(elections ports.ElectionRepository, ballots ports.BallotRepository, results ports.ResultService, cache ports.ResultCache, metrics ports.Metrics, logger *slog.Logger) ports.AuditService {
	return &auditService{
		elections: elections,
		ballots:   ballots,
		results:   results,
		cache:     cache,
		metrics:   resolveMetrics(metrics),
		logger:    resolveLogger(logger),
	}
}

func (s *auditService) VerifyAllClosed(ctx context.Context) (*domain.AuditReport, error) {
	elections, err := s.elections.ListByStatus(ctx, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch closed elections: %w", err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report domain.AuditReport
	)
	errChan := make(chan error, len(elections))

	for _, election := range elections {
		wg.Add(1)
		go func(e *domain.Election) {
			defer wg.Done()
			found, drift, err := s.verify(ctx, e)
			if err != nil {
				errChan <- fmt.Errorf("failed to audit election %s: %w", e.ID, err)
				return
			}
			mu.Lock()
			report.Mismatches = append(report.Mismatches, found...)
			if drift != nil {
				report.Drift = append(report.Drift, *drift)
			}
			mu.Unlock()
		}(election)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return &report, err
		}
	}

	return &report, nil
}

func (s *auditService) verify(ctx context.Context, election *domain.Election) ([]domain.ReceiptMismatch, *domain.ResultDrift, error) {
	stored, err := s.ballots.ListByElection(ctx, election.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list ballots: %w", err)
	}

	var mismatches []domain.ReceiptMismatch
	for _, b := range stored {
		ok, err := counting.VerifyReceipt(b.Ranking, b.Salt, b.ReceiptHash)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			mismatches = append(mismatches, domain.ReceiptMismatch{ElectionID: election.ID, BallotID: b.ID})
		}
	}
	s.metrics.ReceiptMismatches(election.ID, len(mismatches))

	result, err := s.results.Tally(ctx, election)
	if err != nil {
		return nil, nil, err
	}
	drift := s.compareCached(ctx, result)
	s.metrics.ResultDrift(election.ID, drift != nil)
	if drift != nil {
		s.logger.Error("cached result differs from recount",
			slog.String("election_id", election.ID.String()),
			slog.Int("cached_ballots", drift.CachedBallots),
			slog.Int("counted_ballots", drift.CountedBallots),
		)
	}

	// The recount replaces whatever was cached, drifted or not.
	if s.cache != nil {
		if err := s.cache.Set(ctx, result); err != nil {
			s.logger.Warn("result cache write failed", slog.String("election_id", election.ID.String()), slog.Any("error", err))
		}
	}

	s.logger.Info("election audited",
		slog.String("election_id", election.ID.String()),
		slog.Int("ballots", len(stored)),
		slog.Int("mismatches", len(mismatches)),
	)
	return mismatches, drift, nil
}

// compareCached returns the drift between the cached result and a fresh
// recount, or nil when they agree or nothing is cached.
func (s *auditService) compareCached(ctx context.Context, fresh *domain.ElectionResult) *domain.ResultDrift {
	if s.cache == nil {
		return nil
	}
	cached, ok, err := s.cache.Get(ctx, fresh.ElectionID)
	if err != nil {
		s.logger.Warn("result cache read failed", slog.String("election_id", fresh.ElectionID.String()), slog.Any("error", err))
		return nil
	}
	if !ok || cached == nil {
		return nil
	}
	if cached.TotalBallots == fresh.TotalBallots && slices.Equal(cached.Winners(), fresh.Winners()) {
		return nil
	}
	return &domain.ResultDrift{
		ElectionID:     fresh.ElectionID,
		CachedBallots:  cached.TotalBallots,
		CountedBallots: fresh.TotalBallots,
		CachedWinners:  cached.Winners(),
		CountedWinners: fresh.Winners(),
	}
}

// MismatchesByElection groups mismatches for reporting.
func MismatchesByElection(mismatches []domain.ReceiptMismatch) map[uuid.UUID][]int64 {
	out := make(map[uuid.UUID][]int64)
	for _, m := range mismatches {
		out[m.ElectionID] = append(out[m.ElectionID], m.BallotID)
	}
	return out
}
