package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
)

type TokenRepository interface {
	SaveTokens(ctx context.Context, tokens []domain.VoterToken) error
	// GetUnusedByHash returns nil, nil when no unused token has that hash.
	GetUnusedByHash(ctx context.Context, tokenHash string) (*domain.VoterToken, error)
	Stats(ctx context.Context, electionID uuid.UUID) (*domain.TokenStats, error)
}

type BallotRepository interface {
	// Submit stores the ballot and consumes the token as one unit. It fails
	// with domain.ErrTokenAlreadyUsed, writing nothing, when the token was
	// consumed first by someone else, and with domain.ErrElectionNotOpen when
	// the election is not open at the time of the write.
	Submit(ctx context.Context, ballot *domain.Ballot, tokenID uuid.UUID) error
	// ListByElection returns ballots in submission order.
	ListByElection(ctx context.Context, electionID uuid.UUID) ([]domain.Ballot, error)
	ListReceipts(ctx context.Context, electionID uuid.UUID) ([]string, error)
	// Timeline counts ballots per hour of submission, oldest hour first.
	Timeline(ctx context.Context, electionID uuid.UUID) ([]domain.BallotsPerHour, error)
}

type BallotSessionIssuer interface {
	Issue(session domain.BallotSession) (string, error)
	Parse(token string) (*domain.BallotSession, error)
}

type ClaimResult struct {
	SessionToken string           `json:"ballot_session_jwt"`
	Election     *domain.Election `json:"election"`
}

type SubmitBallotInput struct {
	SessionToken string
	Rankings     []counting.CandidateID
}

type SubmitResult struct {
	ReceiptHash string           `json:"receipt_hash"`
	Election    *domain.Election `json:"election"`
}

type VoteService interface {
	Claim(ctx context.Context, slug, token string) (*ClaimResult, error)
	Submit(ctx context.Context, input SubmitBallotInput) (*SubmitResult, error)
}
