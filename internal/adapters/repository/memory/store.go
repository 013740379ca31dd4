package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type tokenUsage struct {
	tokenID     uuid.UUID
	receiptHash string
}

// Store keeps every aggregate in process memory. It implements the election,
// token, ballot and auth repositories directly; Users returns the user
// repository view.
type Store struct {
	mu sync.RWMutex

	elections     map[uuid.UUID]domain.Election
	candidates    map[uuid.UUID][]domain.Candidate
	tokens        map[uuid.UUID]domain.VoterToken
	ballots       map[uuid.UUID][]domain.Ballot
	usage         []tokenUsage
	users         map[uuid.UUID]domain.User
	refreshTokens map[uuid.UUID]domain.RefreshToken

	nextCandidateID counting.CandidateID
	nextBallotID    int64
}

var (
	_ ports.ElectionRepository = (*Store)(nil)
	_ ports.TokenRepository    = (*Store)(nil)
	_ ports.BallotRepository   = (*Store)(nil)
	_ ports.AuthRepository     = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		elections:     make(map[uuid.UUID]domain.Election),
		candidates:    make(map[uuid.UUID][]domain.Candidate),
		tokens:        make(map[uuid.UUID]domain.VoterToken),
		ballots:       make(map[uuid.UUID][]domain.Ballot),
		users:         make(map[uuid.UUID]domain.User),
		refreshTokens: make(map[uuid.UUID]domain.RefreshToken),
	}
}

func (s *Store) Create(_ context.Context, election *domain.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if election.CreatedAt.IsZero() {
		election.CreatedAt = time.Now().UTC()
	}
	s.elections[election.ID] = *election
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[id]
	if !ok {
		return nil, domain.ErrElectionNotFound
	}
	return &election, nil
}

func (s *Store) GetBySlug(_ context.Context, slug string) (*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, election := range s.elections {
		if election.Slug == slug {
			return &election, nil
		}
	}
	return nil, domain.ErrElectionNotFound
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	_, err := s.GetBySlug(ctx, slug)
	return err == nil, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Election, error) {
	return s.listWhere(func(e domain.Election) bool { return e.OwnerID == ownerID }), nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.ElectionStatus) ([]*domain.Election, error) {
	return s.listWhere(func(e domain.Election) bool { return e.Status == status }), nil
}

func (s *Store) listWhere(keep func(domain.Election) bool) []*domain.Election {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Election
	for _, election := range s.elections {
		if keep(election) {
			e := election
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.ElectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return domain.ErrElectionNotFound
	}
	if election.Status != from {
		return domain.ErrInvalidTransition
	}
	election.Status = to
	s.elections[id] = election
	return nil
}

func (s *Store) ReplaceCandidates(_ context.Context, electionID uuid.UUID, candidates []domain.Candidate) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[electionID]
	if !ok {
		return nil, domain.ErrElectionNotFound
	}
	if election.Status != domain.StatusDraft {
		return nil, domain.ErrElectionNotDraft
	}
	stored := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		s.nextCandidateID++
		c.ID = s.nextCandidateID
		c.ElectionID = electionID
		stored[i] = c
	}
	sortCandidates(stored)
	s.candidates[electionID] = stored
	return slices.Clone(stored), nil
}

func (s *Store) ListCandidates(_ context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.candidates[electionID]), nil
}

func sortCandidates(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].SortIndex != candidates[j].SortIndex {
			return candidates[i].SortIndex < candidates[j].SortIndex
		}
		return candidates[i].ID < candidates[j].ID
	})
}

func (s *Store) SaveTokens(_ context.Context, tokens []domain.VoterToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tokens {
		s.tokens[t.ID] = t
	}
	return nil
}

func (s *Store) GetUnusedByHash(_ context.Context, tokenHash string) (*domain.VoterToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.TokenHash == tokenHash && t.UsedAt == nil {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *Store) Stats(_ context.Context, electionID uuid.UUID) (*domain.TokenStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &domain.TokenStats{}
	for _, t := range s.tokens {
		if t.ElectionID != electionID {
			continue
		}
		stats.Total++
		if t.UsedAt != nil {
			stats.Used++
		}
	}
	stats.Unused = stats.Total - stats.Used
	return stats, nil
}

func (s *Store) Submit(_ context.Context, ballot *domain.Ballot, tokenID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[ballot.ElectionID]
	if !ok {
		return domain.ErrElectionNotFound
	}
	if election.Status != domain.StatusOpen {
		return domain.ErrElectionNotOpen
	}

	token, ok := s.tokens[tokenID]
	if !ok || token.UsedAt != nil {
		return domain.ErrTokenAlreadyUsed
	}
	now := time.Now().UTC()
	token.UsedAt = &now
	s.tokens[tokenID] = token

	s.nextBallotID++
	ballot.ID = s.nextBallotID
	ballot.CreatedAt = now
	stored := *ballot
	stored.Ranking = slices.Clone(ballot.Ranking)
	stored.Salt = slices.Clone(ballot.Salt)
	s.ballots[ballot.ElectionID] = append(s.ballots[ballot.ElectionID], stored)
	s.usage = append(s.usage, tokenUsage{tokenID: tokenID, receiptHash: ballot.ReceiptHash})
	return nil
}

func (s *Store) ListByElection(_ context.Context, electionID uuid.UUID) ([]domain.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ballots[electionID]), nil
}

func (s *Store) ListReceipts(_ context.Context, electionID uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.ballots[electionID]
	receipts := make([]string, len(stored))
	for i, b := range stored {
		receipts[i] = b.ReceiptHash
	}
	return receipts, nil
}

func (s *Store) Timeline(_ context.Context, electionID uuid.UUID) ([]domain.BallotsPerHour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	timeline := []domain.BallotsPerHour{}
	for _, b := range s.ballots[electionID] {
		hour := b.CreatedAt.Truncate(time.Hour)
		if n := len(timeline); n > 0 && timeline[n-1].Hour.Equal(hour) {
			timeline[n-1].Votes++
			continue
		}
		timeline = append(timeline, domain.BallotsPerHour{Hour: hour, Votes: 1})
	}
	return timeline, nil
}

// ReceiptForToken returns the receipt recorded when the token was used.
func (s *Store) ReceiptForToken(tokenID uuid.UUID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.usage {
		if u.tokenID == tokenID {
			return u.receiptHash, true
		}
	}
	return "", false
}

func (s *Store) StoreRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.ID = uuid.New()
	token.CreatedAt = time.Now().UTC()
	s.refreshTokens[token.ID] = *token
	return nil
}

func (s *Store) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.refreshTokens {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string) error {
	tokenID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.refreshTokens[tokenID]; ok {
		t.Revoked = true
		s.refreshTokens[tokenID] = t
	}
	return nil
}

// Users returns the user repository backed by this store.
func (s *Store) Users() ports.UserRepository {
	return userRepository{s}
}

type userRepository struct {
	s *Store
}

func (r userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if strings.ToLower(u.Email) == email && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, nil
}

func (r userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	return &u, nil
}

func (r userRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()
	r.s.users[user.ID] = *user
	return nil
}
