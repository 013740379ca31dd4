package counting

// IRV counts ballots by instant runoff. Each round tallies every ballot for
// its highest-ranked candidate still in the race; a strict majority of the
// counted ballots wins, a lone remaining candidate wins by default, and
// otherwise the lowest candidate is eliminated. Equal lowest tallies go to
// whichever candidate comes first in order.
//
// Callers guarantee at least one candidate. With none, the result has no
// rounds and no winner.
func IRV(ballots []Ballot, candidateIDs []CandidateID, order []CandidateID) IRVResult {
	result := IRVResult{Rounds: []RoundResult{}}
	if len(candidateIDs) == 0 {
		return result
	}

	rank := orderIndex(order)
	remaining := make([]CandidateID, len(candidateIDs))
	copy(remaining, candidateIDs)

	for {
		active := CandidateSet(remaining)
		tallies := make(map[CandidateID]int, len(remaining))
		for _, c := range remaining {
			tallies[c] = 0
		}

		total := 0
		for _, ballot := range ballots {
			if top, ok := topChoice(ballot, active); ok {
				tallies[top]++
				total++
			}
		}

		result.Rounds = append(result.Rounds, RoundResult{Tallies: tallies})

		for _, c := range remaining {
			if 2*tallies[c] > total {
				result.Winner = ptr(c)
				return result
			}
		}

		if len(remaining) == 1 {
			result.Winner = ptr(remaining[0])
			return result
		}

		eliminated := lowest(remaining, func(c CandidateID) int { return tallies[c] }, rank)
		result.Rounds[len(result.Rounds)-1].Eliminated = ptr(eliminated)
		remaining = without(remaining, eliminated)
	}
}

func topChoice(ballot Ballot, active map[CandidateID]struct{}) (CandidateID, bool) {
	for _, c := range ballot {
		if _, ok := active[c]; ok {
			return c, true
		}
	}
	return 0, false
}

// orderIndex maps a candidate to its tie-break position. Candidates missing
// from the order rank as -1, ahead of everyone listed.
func orderIndex(order []CandidateID) func(CandidateID) int {
	idx := make(map[CandidateID]int, len(order))
	for i, c := range order {
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	return func(c CandidateID) int {
		if i, ok := idx[c]; ok {
			return i
		}
		return -1
	}
}

// lowest picks the candidate with the smallest tally, breaking ties by rank
// and then by position in candidates.
func lowest(candidates []CandidateID, tally func(CandidateID) int, rank func(CandidateID) int) CandidateID {
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch t, bt := tally(c), tally(best); {
		case t < bt:
			best = c
		case t == bt && rank(c) < rank(best):
			best = c
		}
	}
	return best
}

func without(ids []CandidateID, drop CandidateID) []CandidateID {
	out := make([]CandidateID, 0, len(ids))
	for _, c := range ids {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
