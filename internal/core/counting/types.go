// Package counting holds the ballot tallying and receipt primitives.
//
// Everything in this package is a pure function over in-memory values: no
// I/O, no shared state. Recounting the same ballots with the same seed always
// yields byte-identical results, which is what lets third parties replay a
// published election.
package counting

// CandidateID identifies a candidate within one election.
type CandidateID = int64

// Ballot is a canonical ranking, first preference first.
type Ballot []CandidateID

// RoundResult is the tally snapshot of one IRV round.
type RoundResult struct {
	Tallies    map[CandidateID]int `json:"tallies"`
	Eliminated *CandidateID        `json:"eliminated,omitempty"`
}

type IRVResult struct {
	Rounds []RoundResult `json:"rounds"`
	Winner *CandidateID  `json:"winner"`
}

// STVRound tallies carry fractional weights after surplus transfers.
type STVRound struct {
	Tallies    map[CandidateID]float64 `json:"tallies"`
	Elected    []CandidateID           `json:"elected,omitempty"`
	Eliminated *CandidateID            `json:"eliminated,omitempty"`
}

type STVResult struct {
	Seats   int           `json:"seats"`
	Quota   int           `json:"quota"`
	Rounds  []STVRound    `json:"rounds"`
	Winners []CandidateID `json:"winners"`
}
