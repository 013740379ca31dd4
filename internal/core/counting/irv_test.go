package counting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeat(b Ballot, n int) []Ballot {
	out := make([]Ballot, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func join(groups ...[]Ballot) []Ballot {
	var out []Ballot
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func roundTotal(r RoundResult) int {
	total := 0
	for _, v := range r.Tallies {
		total += v
	}
	return total
}

func TestIRVMajorityShortCircuit(t *testing.T) {
	ids := []CandidateID{1, 2, 3}
	ballots := repeat(Ballot{1}, 5)

	res := IRV(ballots, ids, []CandidateID{3, 2, 1})

	require.Len(t, res.Rounds, 1)
	assert.Equal(t, map[CandidateID]int{1: 5, 2: 0, 3: 0}, res.Rounds[0].Tallies)
	assert.Nil(t, res.Rounds[0].Eliminated)
	require.NotNil(t, res.Winner)
	assert.Equal(t, CandidateID(1), *res.Winner)
}

func TestIRVTieBreakFollowsSeededOrder(t *testing.T) {
	ids := []CandidateID{10, 20, 30}
	ballots := join(repeat(Ballot{30}, 2), repeat(Ballot{10}, 1), repeat(Ballot{20}, 1))

	tests := []struct {
		order      []CandidateID
		eliminated CandidateID
	}{
		{order: []CandidateID{20, 10, 30}, eliminated: 20},
		{order: []CandidateID{10, 20, 30}, eliminated: 10},
	}

	for _, tt := range tests {
		for run := 0; run < 5; run++ {
			res := IRV(ballots, ids, tt.order)

			require.Len(t, res.Rounds, 2)
			require.NotNil(t, res.Rounds[0].Eliminated)
			assert.Equal(t, tt.eliminated, *res.Rounds[0].Eliminated)
			assert.Equal(t, CandidateID(30), *res.Winner)
		}
	}
}

func TestIRVTieBreakWithDerivedSeed(t *testing.T) {
	ids := []CandidateID{10, 20}
	ballots := []Ballot{{10}, {20}}
	order := SeededOrder(ids, "a1b2c3d4e5f60718293a4b5c6d7e8f90")

	res := IRV(ballots, ids, order)

	require.Len(t, res.Rounds, 2)
	assert.Equal(t, CandidateID(20), *res.Rounds[0].Eliminated)
	assert.Equal(t, map[CandidateID]int{10: 1}, res.Rounds[1].Tallies)
	assert.Equal(t, CandidateID(10), *res.Winner)
}

func TestIRVExhaustedBallotsStopCounting(t *testing.T) {
	ids := []CandidateID{1, 2, 3}
	ballots := join(repeat(Ballot{1}, 3), repeat(Ballot{2}, 2), repeat(Ballot{3}, 2))

	res := IRV(ballots, ids, []CandidateID{3, 2, 1})

	require.Len(t, res.Rounds, 2)
	assert.Equal(t, CandidateID(3), *res.Rounds[0].Eliminated)
	assert.Equal(t, 7, roundTotal(res.Rounds[0]))
	assert.Equal(t, map[CandidateID]int{1: 3, 2: 2}, res.Rounds[1].Tallies)
	assert.Equal(t, 5, roundTotal(res.Rounds[1]))
	assert.Less(t, roundTotal(res.Rounds[1]), len(ballots))
	assert.Equal(t, CandidateID(1), *res.Winner)
}

func TestIRVTransfersNextPreferences(t *testing.T) {
	ids := []CandidateID{1, 2, 3}
	ballots := join(
		repeat(Ballot{1, 2}, 4),
		repeat(Ballot{2, 1}, 3),
		repeat(Ballot{3, 2}, 2),
	)

	res := IRV(ballots, ids, []CandidateID{1, 2, 3})

	require.Len(t, res.Rounds, 2)
	assert.Equal(t, map[CandidateID]int{1: 4, 2: 3, 3: 2}, res.Rounds[0].Tallies)
	assert.Equal(t, CandidateID(3), *res.Rounds[0].Eliminated)
	assert.Equal(t, map[CandidateID]int{1: 4, 2: 5}, res.Rounds[1].Tallies)
	assert.Equal(t, CandidateID(2), *res.Winner)
}

func TestIRVSingleCandidateWinsWithoutMajority(t *testing.T) {
	res := IRV(nil, []CandidateID{7}, []CandidateID{7})

	require.Len(t, res.Rounds, 1)
	assert.Equal(t, map[CandidateID]int{7: 0}, res.Rounds[0].Tallies)
	assert.Equal(t, CandidateID(7), *res.Winner)
}

func TestIRVZeroBallots(t *testing.T) {
	res := IRV(nil, []CandidateID{1, 2}, []CandidateID{2, 1})

	require.Len(t, res.Rounds, 2)
	assert.Equal(t, map[CandidateID]int{1: 0, 2: 0}, res.Rounds[0].Tallies)
	assert.Equal(t, CandidateID(2), *res.Rounds[0].Eliminated)
	assert.Equal(t, CandidateID(1), *res.Winner)
}

func TestIRVZeroCandidates(t *testing.T) {
	res := IRV([]Ballot{{1}}, nil, nil)

	assert.Empty(t, res.Rounds)
	assert.Nil(t, res.Winner)
}

func TestIRVIsDeterministic(t *testing.T) {
	ids := []CandidateID{1, 2, 3, 4}
	ballots := join(
		repeat(Ballot{1, 3}, 3),
		repeat(Ballot{2, 4, 3}, 3),
		repeat(Ballot{3, 1}, 2),
		repeat(Ballot{4, 2}, 2),
	)
	order := SeededOrder(ids, "hello.")

	first, err := json.Marshal(IRV(ballots, ids, order))
	require.NoError(t, err)
	second, err := json.Marshal(IRV(ballots, ids, SeededOrder(ids, "hello.")))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestIRVResultJSONUsesStringKeys(t *testing.T) {
	res := IRV(repeat(Ballot{1}, 5), []CandidateID{1, 2, 3}, []CandidateID{1, 2, 3})

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rounds":[{"tallies":{"1":5,"2":0,"3":0}}],"winner":1}`, string(b))
}
