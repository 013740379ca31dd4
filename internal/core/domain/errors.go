package domain

import "errors"

var (
	ErrElectionNotFound    = errors.New("election not found")
	ErrInvalidElectionID   = errors.New("invalid election id")
	ErrForbidden           = errors.New("access denied")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotEnoughCandidates = errors.New("election must have at least 2 candidates to open")
	ErrElectionNotDraft    = errors.New("election is not in draft")
	ErrElectionNotOpen     = errors.New("election is not open for voting")
	ErrElectionNotClosed   = errors.New("election is not closed")
	ErrElectionClosed      = errors.New("election is closed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidToken        = errors.New("invalid or already used token")
	ErrTokenAlreadyUsed    = errors.New("token has already been used")
	ErrInvalidSession      = errors.New("invalid or expired ballot session")
	ErrEmptyBallot         = errors.New("ballot must contain at least one valid candidate ranking")
	ErrInternal            = errors.New("internal server error")
)
