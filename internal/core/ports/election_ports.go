package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
)

type ElectionRepository interface {
	Create(ctx context.Context, election *domain.Election) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Election, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Election, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Election, error)
	ListByStatus(ctx context.Context, status domain.ElectionStatus) ([]*domain.Election, error)
	// UpdateStatus is a compare-and-set: it fails with ErrInvalidTransition
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.ElectionStatus) error
	// ReplaceCandidates swaps the whole candidate list atomically and
	// returns the stored candidates with their assigned IDs. It fails with
	// ErrElectionNotDraft once the election has left draft.
	ReplaceCandidates(ctx context.Context, electionID uuid.UUID, candidates []domain.Candidate) ([]domain.Candidate, error)
	ListCandidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error)
}

type CreateElectionInput struct {
	OwnerID     uuid.UUID
	Title       string
	Description string
	Mode        domain.ElectionMode
	Seats       int
	MaxRank     *int
}

type CandidateInput struct {
	Name      string
	Info      string
	ImageURL  string
	SortIndex int
}

type MintTokensInput struct {
	ElectionID  uuid.UUID
	OwnerID     uuid.UUID
	Count       int
	LabelPrefix string
}

type MintedToken struct {
	Token    string `json:"token"`
	IssuedTo string `json:"issued_to,omitempty"`
}

type ElectionDetails struct {
	Election   *domain.Election   `json:"election"`
	Candidates []domain.Candidate `json:"candidates"`
}

type BallotStats struct {
	TotalBallots int `json:"total_ballots"`
}

type ElectionAnalytics struct {
	Timeline       []domain.BallotsPerHour `json:"timeline"`
	TokenStats     domain.TokenStats       `json:"token_stats"`
	BallotStats    BallotStats             `json:"ballot_stats"`
	CompletionRate int                     `json:"completion_rate"`
}

type ElectionService interface {
	Create(ctx context.Context, input CreateElectionInput) (*domain.Election, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*ElectionDetails, error)
	GetPublic(ctx context.Context, slug string) (*ElectionDetails, error)
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]*domain.Election, error)
	SetCandidates(ctx context.Context, id, ownerID uuid.UUID, candidates []CandidateInput) ([]domain.Candidate, error)
	UpdateStatus(ctx context.Context, id, ownerID uuid.UUID, status domain.ElectionStatus) (*domain.Election, error)
	MintTokens(ctx context.Context, input MintTokensInput) ([]MintedToken, error)
	TokenStats(ctx context.Context, id, ownerID uuid.UUID) (*domain.TokenStats, error)
	Analytics(ctx context.Context, id, ownerID uuid.UUID) (*ElectionAnalytics, error)
}
