package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

const electionColumns = `id, owner_id, slug, title, description, mode, seats, max_rank, status, tie_break_seed, created_at`

type electionRepository struct {
	db *sql.DB
}

func NewElectionRepository(db *sql.DB) ports.ElectionRepository {
	return &electionRepository{
		db: db,
	}
}

func (r *electionRepository) Create(ctx context.Context, election *domain.Election) error {
	query := `
		INSERT INTO elections (id, owner_id, slug, title, description, mode, seats, max_rank, status, tie_break_seed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	var maxRank sql.NullInt64
	if election.MaxRank != nil {
		maxRank = sql.NullInt64{Int64: int64(*election.MaxRank), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		election.ID, election.OwnerID, election.Slug, election.Title, election.Description,
		election.Mode, election.Seats, maxRank, election.Status, election.TieBreakSeed,
	).Scan(&election.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert election: %w", err)
	}
	return nil
}

func (r *electionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *electionRepository) GetBySlug(ctx context.Context, slug string) (*domain.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE slug = $1`
	return r.getOne(ctx, query, slug)
}

func (r *electionRepository) getOne(ctx context.Context, query string, arg any) (*domain.Election, error) {
	election, err := scanElection(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrElectionNotFound
		}
		return nil, fmt.Errorf("failed to get election: %w", err)
	}
	return election, nil
}

func (r *electionRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	query := `SELECT 1 FROM elections WHERE slug = $1 LIMIT 1`
	var exists int
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return true, nil
}

func (r *electionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerID)
}

func (r *electionRepository) ListByStatus(ctx context.Context, status domain.ElectionStatus) ([]*domain.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE status = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, status)
}

func (r *electionRepository) list(ctx context.Context, query string, arg any) ([]*domain.Election, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list elections: %w", err)
	}
	defer rows.Close()

	var elections []*domain.Election
	for rows.Next() {
		election, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan election: %w", err)
		}
		elections = append(elections, election)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elections: %w", err)
	}
	return elections, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (*domain.Election, error) {
	var (
		election domain.Election
		maxRank  sql.NullInt64
	)
	err := row.Scan(
		&election.ID, &election.OwnerID, &election.Slug, &election.Title, &election.Description,
		&election.Mode, &election.Seats, &maxRank, &election.Status, &election.TieBreakSeed, &election.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maxRank.Valid {
		v := int(maxRank.Int64)
		election.MaxRank = &v
	}
	return &election, nil
}

// UpdateStatus moves the election from one status to another. It fails with
// ErrInvalidTransition when the stored status is no longer from.
func (r *electionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.ElectionStatus) error {
	query := `UPDATE elections SET status = $2 WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, to, from)
	if err != nil {
		return fmt.Errorf("failed to update election status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM elections WHERE id = $1`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrElectionNotFound
		}
		return fmt.Errorf("failed to check election: %w", err)
	}
	return domain.ErrInvalidTransition
}

func (r *electionRepository) ReplaceCandidates(ctx context.Context, electionID uuid.UUID, candidates []domain.Candidate) ([]domain.Candidate, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status domain.ElectionStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM elections WHERE id = $1 FOR UPDATE`, electionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrElectionNotFound
		}
		return nil, fmt.Errorf("failed to lock election: %w", err)
	}
	if status != domain.StatusDraft {
		return nil, domain.ErrElectionNotDraft
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE election_id = $1`, electionID); err != nil {
		return nil, fmt.Errorf("failed to delete candidates: %w", err)
	}

	queryCandidate := `
		INSERT INTO candidates (election_id, name, info, image_url, sort_index)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	stmt, err := tx.PrepareContext(ctx, queryCandidate)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare candidate statement: %w", err)
	}
	defer stmt.Close()

	for i := range candidates {
		c := &candidates[i]
		c.ElectionID = electionID
		if err := stmt.QueryRowContext(ctx, electionID, c.Name, c.Info, c.ImageURL, c.SortIndex).Scan(&c.ID); err != nil {
			return nil, fmt.Errorf("failed to insert candidate: %w", err)
		}
	}

	stored, err := fetchCandidates(ctx, tx, electionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}

func (r *electionRepository) ListCandidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	return fetchCandidates(ctx, r.db, electionID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func fetchCandidates(ctx context.Context, q queryer, electionID uuid.UUID) ([]domain.Candidate, error) {
	query := `
		SELECT id, election_id, name, info, image_url, sort_index
		FROM candidates
		WHERE election_id = $1
		ORDER BY sort_index, id
	`
	rows, err := q.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates: %w", err)
	}
	defer rows.Close()

	candidates := []domain.Candidate{}
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.Name, &c.Info, &c.ImageURL, &c.SortIndex); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return candidates, nil
}
