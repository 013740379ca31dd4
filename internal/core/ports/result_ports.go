package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
)

type ResultCache interface {
	Get(ctx context.Context, electionID uuid.UUID) (*domain.ElectionResult, bool, error)
	Set(ctx context.Context, result *domain.ElectionResult) error
}

type ResultPublisher interface {
	PublishElectionClosed(ctx context.Context, event domain.ElectionClosedEvent) error
	Close() error
}

type Metrics interface {
	BallotAccepted(electionID uuid.UUID)
	BallotRejected(electionID uuid.UUID, reason string)
	TallyComputed(mode domain.ElectionMode, elapsed time.Duration)
	ReceiptMismatches(electionID uuid.UUID, count int)
	ResultDrift(electionID uuid.UUID, drifted bool)
}

type ReceiptList struct {
	Election *domain.Election `json:"election"`
	Receipts []string         `json:"receipts"`
}

type PublicResult struct {
	Election   *domain.Election       `json:"election"`
	Candidates []domain.Candidate     `json:"candidates"`
	Result     *domain.ElectionResult `json:"results"`
}

type ResultMetadata struct {
	TotalBallots int       `json:"total_ballots"`
	TieBreakSeed string    `json:"tie_break_seed"`
	OrderVersion string    `json:"order_version"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// OwnerResult is the organizer's view of a result. Unlike PublicResult it
// discloses the tie-break seed.
type OwnerResult struct {
	PublicResult
	Metadata ResultMetadata `json:"metadata"`
}

type ResultService interface {
	// Tally recomputes the result of an election from its stored ballots.
	Tally(ctx context.Context, election *domain.Election) (*domain.ElectionResult, error)
	PublicResults(ctx context.Context, slug string) (*PublicResult, error)
	OwnerResults(ctx context.Context, id, ownerID uuid.UUID) (*OwnerResult, error)
	Receipts(ctx context.Context, slug string) (*ReceiptList, error)
	HasReceipt(ctx context.Context, slug, receipt string) (bool, error)
	Ballots(ctx context.Context, slug string) ([]counting.Ballot, error)
	Audit(ctx context.Context, id, ownerID uuid.UUID) (*domain.AuditExport, error)
	// ElectionClosed computes, caches and announces the final result.
	ElectionClosed(ctx context.Context, election *domain.Election) error
}

type AuditService interface {
	// VerifyAllClosed re-derives every stored receipt and recounts every
	// closed election. It reports the ballots whose receipts do not match
	// and the elections whose cached result disagrees with the recount.
	VerifyAllClosed(ctx context.Context) (*domain.AuditReport, error)
}
