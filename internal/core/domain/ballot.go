package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
)

// Ballot is a stored canonical ranking. It carries no voter identity.
type Ballot struct {
	ID          int64           `json:"-"`
	ElectionID  uuid.UUID       `json:"-"`
	Ranking     counting.Ballot `json:"ranking"`
	Salt        []byte          `json:"salt"`
	ReceiptHash string          `json:"receipt_hash"`
	CreatedAt   time.Time       `json:"-"`
}

type VoterToken struct {
	ID         uuid.UUID  `json:"id"`
	ElectionID uuid.UUID  `json:"election_id"`
	TokenHash  string     `json:"-"`
	IssuedTo   string     `json:"issued_to,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type TokenStats struct {
	Total  int `json:"total"`
	Used   int `json:"used"`
	Unused int `json:"unused"`
}

// BallotsPerHour is one bucket of the submission timeline.
type BallotsPerHour struct {
	Hour  time.Time `json:"hour"`
	Votes int       `json:"votes"`
}

// BallotSession is what a claimed token grants: one submission to one
// election, for a short time.
type BallotSession struct {
	Kind       string    `json:"kind"`
	ElectionID uuid.UUID `json:"election_id"`
	TokenID    uuid.UUID `json:"token_id"`
}

const SessionKindToken = "token"
