package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

// CodeVersion is stamped into audit exports. Release builds override it with
// -ldflags "-X github.com/vncsmyrnk/tessera/internal/core/services.CodeVersion=...".
var CodeVersion = "dev"

type resultService struct {
	elections ports.ElectionRepository
	ballots   ports.BallotRepository
	cache     ports.ResultCache
	publisher ports.ResultPublisher
	metrics   ports.Metrics
	logger    *slog.Logger
}

// NewResultService builds the tally service. cache and publisher are
// optional and may be nil.
func NewResultService(elections ports.ElectionRepository, ballots ports.BallotRepository, cache ports.ResultCache, publisher ports.ResultPublisher, metrics ports.Metrics, logger *slog.Logger) ports.ResultService {
	return &resultService{
		elections: elections,
		ballots:   ballots,
		cache:     cache,
		publisher: publisher,
		metrics:   resolveMetrics(metrics),
		logger:    resolveLogger(logger),
	}
}

func (s *resultService) Tally(ctx context.Context, election *domain.Election) (*domain.ElectionResult, error) {
	candidates, err := s.elections.ListCandidates(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	stored, err := s.ballots.ListByElection(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}
	return s.tally(election, candidates, stored), nil
}

func (s *resultService) tally(election *domain.Election, candidates []domain.Candidate, stored []domain.Ballot) *domain.ElectionResult {
	start := time.Now()
	result := ComputeResult(election, candidates, rankings(stored))
	s.metrics.TallyComputed(election.Mode, time.Since(start))
	return result
}

// ComputeResult counts ballots with the election's mode, breaking ties by the
// order seeded from the election's tie-break seed.
func ComputeResult(election *domain.Election, candidates []domain.Candidate, ballots []counting.Ballot) *domain.ElectionResult {
	ids := domain.CandidateIDs(candidates)
	order := counting.SeededOrder(ids, election.TieBreakSeed)

	result := &domain.ElectionResult{
		ElectionID:   election.ID,
		Mode:         election.Mode,
		TotalBallots: len(ballots),
		CalculatedAt: time.Now().UTC(),
	}
	switch election.Mode {
	case domain.ModeSTV:
		stv := counting.STV(ballots, ids, order, election.Seats)
		result.STV = &stv
	default:
		irv := counting.IRV(ballots, ids, order)
		result.IRV = &irv
	}
	return result
}

func rankings(stored []domain.Ballot) []counting.Ballot {
	out := make([]counting.Ballot, len(stored))
	for i, b := range stored {
		out[i] = b.Ranking
	}
	return out
}

// closedResult serves a closed election's result from the cache when one is
// configured, computing and storing it on a miss.
func (s *resultService) closedResult(ctx context.Context, election *domain.Election) (*domain.ElectionResult, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, election.ID)
		if err != nil {
			s.logger.Warn("result cache read failed", slog.String("election_id", election.ID.String()), slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	result, err := s.Tally(ctx, election)
	if err != nil {
		return nil, err
	}
	s.store(ctx, result)
	return result, nil
}

func (s *resultService) store(ctx context.Context, result *domain.ElectionResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, result); err != nil {
		s.logger.Warn("result cache write failed", slog.String("election_id", result.ElectionID.String()), slog.Any("error", err))
	}
}

func (s *resultService) closedBySlug(ctx context.Context, slug string) (*domain.Election, error) {
	election, err := s.elections.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusClosed {
		return nil, domain.ErrElectionNotClosed
	}
	return election, nil
}

func (s *resultService) PublicResults(ctx context.Context, slug string) (*ports.PublicResult, error) {
	election, err := s.closedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.publicResult(ctx, election)
}

func (s *resultService) OwnerResults(ctx context.Context, id, ownerID uuid.UUID) (*ports.OwnerResult, error) {
	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusClosed {
		return nil, domain.ErrElectionNotClosed
	}
	public, err := s.publicResult(ctx, election)
	if err != nil {
		return nil, err
	}
	return &ports.OwnerResult{
		PublicResult: *public,
		Metadata: ports.ResultMetadata{
			TotalBallots: public.Result.TotalBallots,
			TieBreakSeed: election.TieBreakSeed,
			OrderVersion: counting.SeededOrderVersion,
			CalculatedAt: public.Result.CalculatedAt,
		},
	}, nil
}

func (s *resultService) publicResult(ctx context.Context, election *domain.Election) (*ports.PublicResult, error) {
	result, err := s.closedResult(ctx, election)
	if err != nil {
		return nil, err
	}
	candidates, err := s.elections.ListCandidates(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return &ports.PublicResult{Election: election, Candidates: candidates, Result: result}, nil
}

func (s *resultService) Receipts(ctx context.Context, slug string) (*ports.ReceiptList, error) {
	election, err := s.closedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	receipts, err := s.ballots.ListReceipts(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	if receipts == nil {
		receipts = []string{}
	}
	return &ports.ReceiptList{Election: election, Receipts: receipts}, nil
}

func (s *resultService) HasReceipt(ctx context.Context, slug, receipt string) (bool, error) {
	list, err := s.Receipts(ctx, slug)
	if err != nil {
		return false, err
	}
	receipt = strings.ToLower(strings.TrimSpace(receipt))
	for _, r := range list.Receipts {
		if r == receipt {
			return true, nil
		}
	}
	return false, nil
}

func (s *resultService) Ballots(ctx context.Context, slug string) ([]counting.Ballot, error) {
	election, err := s.closedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	stored, err := s.ballots.ListByElection(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}
	return rankings(stored), nil
}

func (s *resultService) Audit(ctx context.Context, id, ownerID uuid.UUID) (*domain.AuditExport, error) {
	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusClosed {
		return nil, domain.ErrElectionNotClosed
	}

	candidates, err := s.elections.ListCandidates(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	stored, err := s.ballots.ListByElection(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}

	export := &domain.AuditExport{
		Election:     *election,
		TieBreakSeed: election.TieBreakSeed,
		OrderVersion: counting.SeededOrderVersion,
		Candidates:   candidates,
		Ballots:      make([]domain.AuditBallot, len(stored)),
		Receipts:     make([]string, len(stored)),
		Result:       s.tally(election, candidates, stored),
		CodeVersion:  CodeVersion,
		GeneratedAt:  time.Now().UTC(),
	}
	for i, b := range stored {
		export.Ballots[i] = domain.AuditBallot{
			Ranking:     b.Ranking,
			Salt:        base64.StdEncoding.EncodeToString(b.Salt),
			ReceiptHash: b.ReceiptHash,
		}
		export.Receipts[i] = b.ReceiptHash
	}
	return export, nil
}

func (s *resultService) ElectionClosed(ctx context.Context, election *domain.Election) error {
	result, err := s.Tally(ctx, election)
	if err != nil {
		return err
	}
	s.store(ctx, result)

	s.logger.Info("election tallied",
		slog.String("election_id", election.ID.String()),
		slog.Int("total_ballots", result.TotalBallots),
		slog.Any("winners", result.Winners()),
	)

	if s.publisher == nil {
		return nil
	}
	event := domain.ElectionClosedEvent{
		ElectionID:   election.ID,
		Slug:         election.Slug,
		Mode:         election.Mode,
		Winners:      result.Winners(),
		TotalBallots: result.TotalBallots,
		ClosedAt:     result.CalculatedAt,
	}
	if err := s.publisher.PublishElectionClosed(ctx, event); err != nil {
		return fmt.Errorf("failed to publish election result: %w", err)
	}
	return nil
}
