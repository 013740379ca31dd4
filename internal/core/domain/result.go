package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
)

// ElectionResult is a derived tally. Exactly one of IRV and STV is set,
// according to the election mode.
type ElectionResult struct {
	ElectionID   uuid.UUID           `json:"election_id"`
	Mode         ElectionMode        `json:"mode"`
	IRV          *counting.IRVResult `json:"irv,omitempty"`
	STV          *counting.STVResult `json:"stv,omitempty"`
	TotalBallots int                 `json:"total_ballots"`
	CalculatedAt time.Time           `json:"calculated_at"`
}

// Winners returns the elected candidates regardless of mode.
func (r *ElectionResult) Winners() []counting.CandidateID {
	switch {
	case r.IRV != nil && r.IRV.Winner != nil:
		return []counting.CandidateID{*r.IRV.Winner}
	case r.STV != nil:
		return r.STV.Winners
	}
	return nil
}

// AuditBallot is a ballot as exported for independent replay.
type AuditBallot struct {
	Ranking     counting.Ballot `json:"ranking"`
	Salt        string          `json:"salt"`
	ReceiptHash string          `json:"receipt_hash"`
}

type AuditExport struct {
	Election     Election        `json:"election"`
	TieBreakSeed string          `json:"tie_break_seed"`
	OrderVersion string          `json:"order_version"`
	Candidates   []Candidate     `json:"candidates"`
	Ballots      []AuditBallot   `json:"ballots"`
	Receipts     []string        `json:"receipts"`
	Result       *ElectionResult `json:"result"`
	CodeVersion  string          `json:"code_version"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// ReceiptMismatch marks a stored ballot whose receipt does not match its
// stored (salt, ranking).
type ReceiptMismatch struct {
	ElectionID uuid.UUID `json:"election_id"`
	BallotID   int64     `json:"ballot_id"`
}

// ResultDrift marks a closed election whose cached result no longer matches
// a fresh recount.
type ResultDrift struct {
	ElectionID     uuid.UUID              `json:"election_id"`
	CachedBallots  int                    `json:"cached_ballots"`
	CountedBallots int                    `json:"counted_ballots"`
	CachedWinners  []counting.CandidateID `json:"cached_winners"`
	CountedWinners []counting.CandidateID `json:"counted_winners"`
}

// AuditReport collects everything an audit run found wrong.
type AuditReport struct {
	Mismatches []ReceiptMismatch `json:"mismatches"`
	Drift      []ResultDrift     `json:"drift"`
}

func (r *AuditReport) Clean() bool {
	return len(r.Mismatches) == 0 && len(r.Drift) == 0
}

type ElectionClosedEvent struct {
	ElectionID   uuid.UUID              `json:"election_id"`
	Slug         string                 `json:"slug"`
	Mode         ElectionMode           `json:"mode"`
	Winners      []counting.CandidateID `json:"winners"`
	TotalBallots int                    `json:"total_ballots"`
	ClosedAt     time.Time              `json:"closed_at"`
}
