package services_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
	"github.com/vncsmyrnk/tessera/internal/core/services"
)

func TestResultsOnlyAfterClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	election, candidates, tokens := f.openElection(t, ports.CreateElectionInput{}, []string{"A", "B", "C"}, 5)
	a, b, c := candidates[0].ID, candidates[1].ID, candidates[2].ID

	var receipts []string
	receipts = append(receipts, f.vote(t, election.Slug, tokens[0], a, b))
	receipts = append(receipts, f.vote(t, election.Slug, tokens[1], a))
	receipts = append(receipts, f.vote(t, election.Slug, tokens[2], b, a))
	receipts = append(receipts, f.vote(t, election.Slug, tokens[3], c, b))
	receipts = append(receipts, f.vote(t, election.Slug, tokens[4], b))

	_, err := f.results.PublicResults(ctx, election.Slug)
	assert.ErrorIs(t, err, domain.ErrElectionNotClosed)
	_, err = f.results.OwnerResults(ctx, election.ID, f.owner)
	assert.ErrorIs(t, err, domain.ErrElectionNotClosed)
	_, err = f.results.Receipts(ctx, election.Slug)
	assert.ErrorIs(t, err, domain.ErrElectionNotClosed)
	_, err = f.results.Ballots(ctx, election.Slug)
	assert.ErrorIs(t, err, domain.ErrElectionNotClosed)
	_, err = f.results.Audit(ctx, election.ID, f.owner)
	assert.ErrorIs(t, err, domain.ErrElectionNotClosed)

	_, err = f.elections.UpdateStatus(ctx, election.ID, f.owner, domain.StatusClosed)
	require.NoError(t, err)

	public, err := f.results.PublicResults(ctx, election.Slug)
	require.NoError(t, err)
	require.NotNil(t, public.Result.IRV)
	require.NotNil(t, public.Result.IRV.Winner)
	// Round 1: A=2 B=2 C=1, C out; round 2: B=3 of 5.
	assert.Equal(t, b, *public.Result.IRV.Winner)
	assert.Equal(t, 5, public.Result.TotalBallots)
	assert.Len(t, public.Candidates, 3)
	assert.GreaterOrEqual(t, f.cache.hits, 1)

	owner, err := f.results.OwnerResults(ctx, election.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, public.Result, owner.Result)
	assert.Equal(t, 5, owner.Metadata.TotalBallots)
	assert.Regexp(t, `^[0-9a-f]{32}$`, owner.Metadata.TieBreakSeed)
	assert.Equal(t, counting.SeededOrderVersion, owner.Metadata.OrderVersion)

	export, err := f.results.Audit(ctx, election.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, export.TieBreakSeed, owner.Metadata.TieBreakSeed)

	_, err = f.results.OwnerResults(ctx, election.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, err := f.results.Receipts(ctx, election.Slug)
	require.NoError(t, err)
	assert.Equal(t, receipts, list.Receipts)

	found, err := f.results.HasReceipt(ctx, election.Slug, receipts[2])
	require.NoError(t, err)
	assert.True(t, found)
	found, err = f.results.HasReceipt(ctx, election.Slug, "00")
	require.NoError(t, err)
	assert.False(t, found)

	ballots, err := f.results.Ballots(ctx, election.Slug)
	require.NoError(t, err)
	assert.Equal(t, []counting.Ballot{{a, b}, {a}, {b, a}, {c, b}, {b}}, ballots)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, []counting.CandidateID{b}, f.publisher.events[0].Winners)
	assert.Equal(t, 5, f.publisher.events[0].TotalBallots)
}

func TestResultsMatchCountingEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	election, candidates, tokens := f.openElection(t, ports.CreateElectionInput{}, []string{"A", "B"}, 2)
	a, b := candidates[0].ID, candidates[1].ID

	f.vote(t, election.Slug, tokens[0], a)
	f.vote(t, election.Slug, tokens[1], b)

	closed, err := f.elections.UpdateStatus(ctx, election.ID, f.owner, domain.StatusClosed)
	require.NoError(t, err)

	public, err := f.results.PublicResults(ctx, election.Slug)
	require.NoError(t, err)

	stored, err := f.store.GetByID(ctx, closed.ID)
	require.NoError(t, err)
	order := counting.SeededOrder([]counting.CandidateID{a, b}, stored.TieBreakSeed)
	want := counting.IRV([]counting.Ballot{{a}, {b}}, []counting.CandidateID{a, b}, order)
	assert.Equal(t, want.Winner, public.Result.IRV.Winner)
	assert.Equal(t, want.Rounds, public.Result.IRV.Rounds)
}

func TestSTVElection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	election, candidates, tokens := f.openElection(t, ports.CreateElectionInput{Mode: domain.ModeSTV, Seats: 2}, []string{"A", "B", "C", "D"}, 13)
	id := func(i int) counting.CandidateID { return candidates[i].ID }

	next := 0
	cast := func(n int, ranking ...counting.CandidateID) {
		for i := 0; i < n; i++ {
			f.vote(t, election.Slug, tokens[next], ranking...)
			next++
		}
	}
	cast(6, id(0), id(1))
	cast(2, id(1))
	cast(3, id(2))
	cast(2, id(3), id(2))

	_, err := f.elections.UpdateStatus(ctx, election.ID, f.owner, domain.StatusClosed)
	require.NoError(t, err)

	public, err := f.results.PublicResults(ctx, election.Slug)
	require.NoError(t, err)
	require.NotNil(t, public.Result.STV)
	assert.Nil(t, public.Result.IRV)
	assert.Equal(t, 5, public.Result.STV.Quota)
	assert.Equal(t, []counting.CandidateID{id(0), id(2)}, public.Result.STV.Winners)
	assert.Equal(t, []counting.CandidateID{id(0), id(2)}, public.Result.Winners())
}

func TestAuditExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	election, candidates, tokens := f.openElection(t, ports.CreateElectionInput{}, []string{"A", "B"}, 2)

	r1 := f.vote(t, election.Slug, tokens[0], candidates[1].ID)
	r2 := f.vote(t, election.Slug, tokens[1], candidates[0].ID, candidates[1].ID)

	_, err := f.elections.UpdateStatus(ctx, election.ID, f.owner, domain.StatusClosed)
	require.NoError(t, err)

	_, err = f.results.Audit(ctx, election.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	export, err := f.results.Audit(ctx, election.ID, f.owner)
	require.NoError(t, err)

	assert.Equal(t, counting.SeededOrderVersion, export.OrderVersion)
	assert.Equal(t, services.CodeVersion, export.CodeVersion)
	assert.Len(t, export.TieBreakSeed, 32)
	assert.Equal(t, []string{r1, r2}, export.Receipts)
	require.Len(t, export.Ballots, 2)

	for _, b := range export.Ballots {
		salt, err := base64.StdEncoding.DecodeString(b.Salt)
		require.NoError(t, err)
		ok, err := counting.VerifyReceipt(b.Ranking, salt, b.ReceiptHash)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, export.Result.TotalBallots)
}

func TestTallyEmptyElection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	election, candidates, _ := f.openElection(t, ports.CreateElectionInput{}, []string{"A", "B"}, 0)

	result, err := f.results.Tally(ctx, election)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalBallots)
	require.NotNil(t, result.IRV)
	require.Len(t, result.IRV.Rounds, 2)
	require.NotNil(t, result.IRV.Winner)
	assert.Contains(t, domain.CandidateIDs(candidates), *result.IRV.Winner)
}
