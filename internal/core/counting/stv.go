package counting

import (
	"math/big"
	"sort"
)

// DroopQuota is floor(valid/(seats+1)) + 1.
func DroopQuota(valid, seats int) int {
	return valid/(seats+1) + 1
}

type weightedBallot struct {
	ranking Ballot
	weight  *big.Rat
}

// STV fills seats by single transferable vote with the Droop quota. Ballot
// weights are exact rationals so a recount never drifts: when a candidate
// reaches the quota, every ballot currently counting for them continues to
// its next hopeful preference at weight * (votes - quota) / votes.
//
// A single seat is plain IRV.
func STV(ballots []Ballot, candidateIDs []CandidateID, order []CandidateID, seats int) STVResult {
	result := STVResult{Seats: seats, Rounds: []STVRound{}, Winners: []CandidateID{}}
	if seats <= 0 || len(candidateIDs) == 0 {
		return result
	}

	if seats == 1 {
		return fromIRV(IRV(ballots, candidateIDs, order), len(validBallots(ballots, candidateIDs)))
	}

	pile := validBallots(ballots, candidateIDs)
	result.Quota = DroopQuota(len(pile), seats)
	quota := new(big.Rat).SetInt64(int64(result.Quota))
	rank := orderIndex(order)

	hopeful := make([]CandidateID, len(candidateIDs))
	copy(hopeful, candidateIDs)

	for len(hopeful) > 0 && len(result.Winners) < seats {
		active := CandidateSet(hopeful)
		tallies := make(map[CandidateID]*big.Rat, len(hopeful))
		holders := make(map[CandidateID][]*weightedBallot, len(hopeful))
		for _, c := range hopeful {
			tallies[c] = new(big.Rat)
		}
		for _, b := range pile {
			if b.weight.Sign() == 0 {
				continue
			}
			if top, ok := topChoice(b.ranking, active); ok {
				tallies[top].Add(tallies[top], b.weight)
				holders[top] = append(holders[top], b)
			}
		}

		round := STVRound{Tallies: make(map[CandidateID]float64, len(tallies))}
		for c, t := range tallies {
			round.Tallies[c], _ = t.Float64()
		}

		byTally := rankByTally(hopeful, tallies, rank)
		open := seats - len(result.Winners)

		var reached []CandidateID
		for _, c := range byTally {
			if len(reached) < open && tallies[c].Cmp(quota) >= 0 {
				reached = append(reached, c)
			}
		}

		switch {
		case len(reached) > 0:
			for _, c := range reached {
				transfer := new(big.Rat).Sub(tallies[c], quota)
				transfer.Quo(transfer, tallies[c])
				for _, b := range holders[c] {
					b.weight.Mul(b.weight, transfer)
				}
				hopeful = without(hopeful, c)
			}
			round.Elected = reached
			result.Winners = append(result.Winners, reached...)

		case len(hopeful) <= open:
			round.Elected = byTally
			result.Winners = append(result.Winners, byTally...)
			hopeful = nil

		default:
			out := byTally[len(byTally)-1]
			round.Eliminated = ptr(out)
			hopeful = without(hopeful, out)
		}

		result.Rounds = append(result.Rounds, round)
	}

	return result
}

// rankByTally orders candidates by tally descending. Among equal tallies the
// candidate that the seeded order would eliminate first sorts last.
func rankByTally(candidates []CandidateID, tallies map[CandidateID]*big.Rat, rank func(CandidateID) int) []CandidateID {
	out := make([]CandidateID, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := tallies[out[i]].Cmp(tallies[out[j]]); cmp != 0 {
			return cmp > 0
		}
		return rank(out[i]) > rank(out[j])
	})
	return out
}

func validBallots(ballots []Ballot, candidateIDs []CandidateID) []*weightedBallot {
	known := CandidateSet(candidateIDs)
	pile := make([]*weightedBallot, 0, len(ballots))
	for _, b := range ballots {
		if _, ok := topChoice(b, known); ok {
			pile = append(pile, &weightedBallot{ranking: b, weight: big.NewRat(1, 1)})
		}
	}
	return pile
}

func fromIRV(irv IRVResult, valid int) STVResult {
	result := STVResult{
		Seats:   1,
		Quota:   DroopQuota(valid, 1),
		Rounds:  make([]STVRound, 0, len(irv.Rounds)),
		Winners: []CandidateID{},
	}
	for _, r := range irv.Rounds {
		round := STVRound{Tallies: make(map[CandidateID]float64, len(r.Tallies)), Eliminated: r.Eliminated}
		for c, t := range r.Tallies {
			round.Tallies[c] = float64(t)
		}
		result.Rounds = append(result.Rounds, round)
	}
	if irv.Winner != nil {
		result.Winners = append(result.Winners, *irv.Winner)
		result.Rounds[len(result.Rounds)-1].Elected = []CandidateID{*irv.Winner}
	}
	return result
}
