package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
)

type ElectionStatus string

const (
	StatusDraft  ElectionStatus = "draft"
	StatusOpen   ElectionStatus = "open"
	StatusClosed ElectionStatus = "closed"
)

func (s ElectionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether an election may move from s to next.
// Closed is final; everything else may move forward or stay draft.
func (s ElectionStatus) CanTransition(next ElectionStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusOpen || next == StatusClosed
	case StatusOpen:
		return next == StatusClosed
	}
	return false
}

type ElectionMode string

const (
	ModeIRV ElectionMode = "IRV"
	ModeSTV ElectionMode = "STV"
)

type Election struct {
	ID           uuid.UUID      `json:"id"`
	OwnerID      uuid.UUID      `json:"owner_id"`
	Slug         string         `json:"slug"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Mode         ElectionMode   `json:"mode"`
	Seats        int            `json:"seats"`
	MaxRank      *int           `json:"max_rank,omitempty"`
	Status       ElectionStatus `json:"status"`
	TieBreakSeed string         `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Candidate struct {
	ID         counting.CandidateID `json:"id"`
	ElectionID uuid.UUID            `json:"-"`
	Name       string               `json:"name"`
	Info       string               `json:"info,omitempty"`
	ImageURL   string               `json:"image_url,omitempty"`
	SortIndex  int                  `json:"sort_index"`
}

// CandidateIDs returns the IDs in the given (sort_index) order.
func CandidateIDs(candidates []Candidate) []counting.CandidateID {
	ids := make([]counting.CandidateID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}
