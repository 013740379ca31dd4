package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type voteService struct {
	elections ports.ElectionRepository
	tokens    ports.TokenRepository
	ballots   ports.BallotRepository
	sessions  ports.BallotSessionIssuer
	metrics   ports.Metrics
	logger    *slog.Logger
}

func NewVoteService(elections ports.ElectionRepository, tokens ports.TokenRepository, ballots ports.BallotRepository, sessions ports.BallotSessionIssuer, metrics ports.Metrics, logger *slog.Logger) ports.VoteService {
	return &voteService{
		elections: elections,
		tokens:    tokens,
		ballots:   ballots,
		sessions:  sessions,
		metrics:   resolveMetrics(metrics),
		logger:    resolveLogger(logger),
	}
}

func (s *voteService) Claim(ctx context.Context, slug, token string) (*ports.ClaimResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	election, err := s.elections.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusOpen {
		return nil, domain.ErrElectionNotOpen
	}

	voterToken, err := s.tokens.GetUnusedByHash(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if voterToken == nil || voterToken.ElectionID != election.ID {
		return nil, domain.ErrInvalidToken
	}

	session, err := s.sessions.Issue(domain.BallotSession{
		Kind:       domain.SessionKindToken,
		ElectionID: election.ID,
		TokenID:    voterToken.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue ballot session: %w", err)
	}

	return &ports.ClaimResult{SessionToken: session, Election: election}, nil
}

func (s *voteService) Submit(ctx context.Context, input ports.SubmitBallotInput) (*ports.SubmitResult, error) {
	session, err := s.sessions.Parse(input.SessionToken)
	if err != nil || session.Kind != domain.SessionKindToken {
		return nil, domain.ErrInvalidSession
	}

	election, err := s.elections.GetByID(ctx, session.ElectionID)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusOpen {
		return nil, domain.ErrElectionNotOpen
	}

	candidates, err := s.elections.ListCandidates(ctx, election.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	ranking := counting.Canonicalize(input.Rankings, counting.CandidateSet(domain.CandidateIDs(candidates)), election.MaxRank)
	if len(ranking) == 0 {
		s.metrics.BallotRejected(election.ID, "empty")
		return nil, domain.ErrEmptyBallot
	}

	salt, err := counting.NewSalt()
	if err != nil {
		return nil, err
	}
	receipt, err := counting.ReceiptFor(ranking, salt)
	if err != nil {
		return nil, err
	}

	ballot := &domain.Ballot{
		ElectionID:  election.ID,
		Ranking:     ranking,
		Salt:        salt,
		ReceiptHash: receipt,
	}
	if err := s.ballots.Submit(ctx, ballot, session.TokenID); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenAlreadyUsed):
			s.metrics.BallotRejected(election.ID, "token_used")
			return nil, err
		case errors.Is(err, domain.ErrElectionNotOpen):
			// Closed between the status read above and the write.
			s.metrics.BallotRejected(election.ID, "not_open")
			return nil, err
		}
		return nil, fmt.Errorf("failed to store ballot: %w", err)
	}

	s.metrics.BallotAccepted(election.ID)
	s.logger.Debug("ballot accepted", slog.String("election_id", election.ID.String()))

	return &ports.SubmitResult{ReceiptHash: receipt, Election: election}, nil
}
