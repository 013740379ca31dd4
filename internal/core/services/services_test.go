package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/tessera/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/tessera/internal/adapters/session"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
	"github.com/vncsmyrnk/tessera/internal/core/services"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ElectionClosedEvent
}

func (p *recordingPublisher) PublishElectionClosed(_ context.Context, event domain.ElectionClosedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type mapCache struct {
	mu      sync.Mutex
	results map[uuid.UUID]*domain.ElectionResult
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{results: make(map[uuid.UUID]*domain.ElectionResult)}
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*domain.ElectionResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[id]
	if ok {
		c.hits++
	}
	return r, ok, nil
}

func (c *mapCache) Set(_ context.Context, r *domain.ElectionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.ElectionID] = r
	return nil
}

type countingMetrics struct {
	mu         sync.Mutex
	accepted   int
	rejected   map[string]int
	tallies    int
	mismatches int
	drifted    int
}

func (m *countingMetrics) BallotAccepted(uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted++
}

func (m *countingMetrics) BallotRejected(_ uuid.UUID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = make(map[string]int)
	}
	m.rejected[reason]++
}

func (m *countingMetrics) TallyComputed(domain.ElectionMode, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tallies++
}

func (m *countingMetrics) ReceiptMismatches(_ uuid.UUID, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mismatches += count
}

func (m *countingMetrics) ResultDrift(_ uuid.UUID, drifted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if drifted {
		m.drifted++
	}
}

type fixture struct {
	store     *memory.Store
	cache     *mapCache
	publisher *recordingPublisher
	metrics   *countingMetrics
	elections ports.ElectionService
	votes     ports.VoteService
	results   ports.ResultService
	audit     ports.AuditService
	owner     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		cache:     newMapCache(),
		publisher: &recordingPublisher{},
		metrics:   &countingMetrics{},
		owner:     uuid.New(),
	}
	f.results = services.NewResultService(f.store, f.store, f.cache, f.publisher, f.metrics, nil)
	f.elections = services.NewElectionService(f.store, f.store, f.store, f.results, nil)
	f.votes = services.NewVoteService(f.store, f.store, f.store, session.NewJWTIssuer("test-secret", 15*time.Minute), f.metrics, nil)
	f.audit = services.NewAuditService(f.store, f.store, f.results, f.cache, f.metrics, nil)
	return f
}

// openElection creates an election with the named candidates, opens it and
// mints n tokens.
func (f *fixture) openElection(t *testing.T, input ports.CreateElectionInput, names []string, n int) (*domain.Election, []domain.Candidate, []string) {
	t.Helper()
	ctx := context.Background()
	input.OwnerID = f.owner
	if input.Title == "" {
		input.Title = "Test Election"
	}

	election, err := f.elections.Create(ctx, input)
	require.NoError(t, err)

	var in []ports.CandidateInput
	for i, name := range names {
		in = append(in, ports.CandidateInput{Name: name, SortIndex: i})
	}
	candidates, err := f.elections.SetCandidates(ctx, election.ID, f.owner, in)
	require.NoError(t, err)

	election, err = f.elections.UpdateStatus(ctx, election.ID, f.owner, domain.StatusOpen)
	require.NoError(t, err)

	var tokens []string
	if n > 0 {
		minted, err := f.elections.MintTokens(ctx, ports.MintTokensInput{ElectionID: election.ID, OwnerID: f.owner, Count: n})
		require.NoError(t, err)
		for _, m := range minted {
			tokens = append(tokens, m.Token)
		}
	}
	return election, candidates, tokens
}

func (f *fixture) vote(t *testing.T, slug, token string, ranking ...int64) string {
	t.Helper()
	ctx := context.Background()
	claim, err := f.votes.Claim(ctx, slug, token)
	require.NoError(t, err)
	res, err := f.votes.Submit(ctx, ports.SubmitBallotInput{SessionToken: claim.SessionToken, Rankings: ranking})
	require.NoError(t, err)
	return res.ReceiptHash
}
