package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

const (
	maxTitleLength     = 200
	maxCandidateLength = 100
	maxMintCount       = 10000
)

type electionService struct {
	elections ports.ElectionRepository
	tokens    ports.TokenRepository
	ballots   ports.BallotRepository
	results   ports.ResultService
	logger    *slog.Logger
}

func NewElectionService(elections ports.ElectionRepository, tokens ports.TokenRepository, ballots ports.BallotRepository, results ports.ResultService, logger *slog.Logger) ports.ElectionService {
	return &electionService{
		elections: elections,
		tokens:    tokens,
		ballots:   ballots,
		results:   results,
		logger:    resolveLogger(logger),
	}
}

func (s *electionService) Create(ctx context.Context, input ports.CreateElectionInput) (*domain.Election, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must have between 1 and %d characters", domain.ErrInvalidInput, maxTitleLength)
	}

	mode := input.Mode
	if mode == "" {
		mode = domain.ModeIRV
	}
	seats := input.Seats
	if seats == 0 {
		seats = 1
	}
	switch {
	case mode != domain.ModeIRV && mode != domain.ModeSTV:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, mode)
	case seats < 1:
		return nil, fmt.Errorf("%w: seats must be positive", domain.ErrInvalidInput)
	case mode == domain.ModeIRV && seats != 1:
		return nil, fmt.Errorf("%w: IRV elects exactly one seat", domain.ErrInvalidInput)
	case input.MaxRank != nil && *input.MaxRank < 1:
		return nil, fmt.Errorf("%w: max_rank must be positive", domain.ErrInvalidInput)
	}

	slug, err := s.uniqueSlug(ctx, title)
	if err != nil {
		return nil, err
	}

	seed, err := generateTieBreakSeed()
	if err != nil {
		return nil, err
	}

	election := &domain.Election{
		ID:           uuid.New(),
		OwnerID:      input.OwnerID,
		Slug:         slug,
		Title:        title,
		Description:  input.Description,
		Mode:         mode,
		Seats:        seats,
		MaxRank:      input.MaxRank,
		Status:       domain.StatusDraft,
		TieBreakSeed: seed,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.elections.Create(ctx, election); err != nil {
		return nil, fmt.Errorf("failed to save election: %w", err)
	}

	s.logger.Info("election created",
		slog.String("election_id", election.ID.String()),
		slog.String("slug", election.Slug),
		slog.String("mode", string(election.Mode)),
	)
	return election, nil
}

func (s *electionService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slugify(title)
	slug := base
	for n := 1; ; n++ {
		exists, err := s.elections.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *electionService) Get(ctx context.Context, id, ownerID uuid.UUID) (*ports.ElectionDetails, error) {
	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, election)
}

func (s *electionService) GetPublic(ctx context.Context, slug string) (*ports.ElectionDetails, error) {
	election, err := s.elections.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, election)
}

func (s *electionService) details(ctx context.Context, election *domain.Election) (*ports.ElectionDetails, error) {
	candidates, err := s.elections.ListCandidates(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return &ports.ElectionDetails{Election: election, Candidates: candidates}, nil
}

func (s *electionService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]*domain.Election, error) {
	elections, err := s.elections.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list elections: %w", err)
	}
	return elections, nil
}

func (s *electionService) SetCandidates(ctx context.Context, id, ownerID uuid.UUID, inputs []ports.CandidateInput) ([]domain.Candidate, error) {
	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusDraft {
		return nil, domain.ErrElectionNotDraft
	}

	candidates := make([]domain.Candidate, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || utf8.RuneCountInString(name) > maxCandidateLength {
			return nil, fmt.Errorf("%w: candidate name must have between 1 and %d characters", domain.ErrInvalidInput, maxCandidateLength)
		}
		if in.SortIndex < 0 {
			return nil, fmt.Errorf("%w: sort_index must not be negative", domain.ErrInvalidInput)
		}
		candidates = append(candidates, domain.Candidate{
			ElectionID: election.ID,
			Name:       name,
			Info:       in.Info,
			ImageURL:   in.ImageURL,
			SortIndex:  in.SortIndex,
		})
	}

	stored, err := s.elections.ReplaceCandidates(ctx, election.ID, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to replace candidates: %w", err)
	}
	return stored, nil
}

func (s *electionService) UpdateStatus(ctx context.Context, id, ownerID uuid.UUID, status domain.ElectionStatus) (*domain.Election, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}
	if election.Status == status {
		return election, nil
	}
	if election.Status == domain.StatusClosed {
		return nil, domain.ErrElectionClosed
	}
	if !election.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, election.Status, status)
	}

	if status == domain.StatusOpen {
		candidates, err := s.elections.ListCandidates(ctx, election.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list candidates: %w", err)
		}
		if len(candidates) < 2 {
			return nil, domain.ErrNotEnoughCandidates
		}
	}

	if err := s.elections.UpdateStatus(ctx, election.ID, election.Status, status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	election.Status = status

	s.logger.Info("election status changed",
		slog.String("election_id", election.ID.String()),
		slog.String("status", string(status)),
	)

	if status == domain.StatusClosed && s.results != nil {
		// The election is closed either way; a failed announcement is
		// recomputed on the next read.
		if err := s.results.ElectionClosed(ctx, election); err != nil {
			s.logger.Error("failed to publish closed election",
				slog.String("election_id", election.ID.String()),
				slog.Any("error", err),
			)
		}
	}

	return election, nil
}

func (s *electionService) MintTokens(ctx context.Context, input ports.MintTokensInput) ([]ports.MintedToken, error) {
	if input.Count < 1 || input.Count > maxMintCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidInput, maxMintCount)
	}

	election, err := ownedElection(ctx, s.elections, input.ElectionID, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if election.Status == domain.StatusClosed {
		return nil, domain.ErrElectionClosed
	}

	now := time.Now().UTC()
	minted := make([]ports.MintedToken, 0, input.Count)
	records := make([]domain.VoterToken, 0, input.Count)
	for i := 1; i <= input.Count; i++ {
		plain, err := generateVoterToken()
		if err != nil {
			return nil, err
		}
		var issuedTo string
		if input.LabelPrefix != "" {
			issuedTo = fmt.Sprintf("%s-%d", input.LabelPrefix, i)
		}
		records = append(records, domain.VoterToken{
			ID:         uuid.New(),
			ElectionID: election.ID,
			TokenHash:  hashToken(plain),
			IssuedTo:   issuedTo,
			CreatedAt:  now,
		})
		minted = append(minted, ports.MintedToken{Token: plain, IssuedTo: issuedTo})
	}

	if err := s.tokens.SaveTokens(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}

	s.logger.Info("voter tokens minted",
		slog.String("election_id", election.ID.String()),
		slog.Int("count", len(minted)),
	)
	return minted, nil
}

func (s *electionService) TokenStats(ctx context.Context, id, ownerID uuid.UUID) (*domain.TokenStats, error) {
	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}
	stats, err := s.tokens.Stats(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token stats: %w", err)
	}
	return stats, nil
}

// Analytics summarises turnout: ballots per hour and the share of minted
// tokens that were used, as a rounded percentage.
func (s *electionService) Analytics(ctx context.Context, id, ownerID uuid.UUID) (*ports.ElectionAnalytics, error) {
	election, err := ownedElection(ctx, s.elections, id, ownerID)
	if err != nil {
		return nil, err
	}

	timeline, err := s.ballots.Timeline(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot timeline: %w", err)
	}
	stats, err := s.tokens.Stats(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token stats: %w", err)
	}

	var total int
	for _, bucket := range timeline {
		total += bucket.Votes
	}
	var rate int
	if stats.Total > 0 {
		rate = int(math.Round(float64(total) / float64(stats.Total) * 100))
	}

	return &ports.ElectionAnalytics{
		Timeline:       timeline,
		TokenStats:     *stats,
		BallotStats:    ports.BallotStats{TotalBallots: total},
		CompletionRate: rate,
	}, nil
}

// ownedElection loads an election and checks that ownerID may manage it.
func ownedElection(ctx context.Context, repo ports.ElectionRepository, id, ownerID uuid.UUID) (*domain.Election, error) {
	election, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrElectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get election: %w", err)
	}
	if election.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return election, nil
}
