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

type tokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) ports.TokenRepository {
	return &tokenRepository{
		db: db,
	}
}

func (r *tokenRepository) SaveTokens(ctx context.Context, tokens []domain.VoterToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO voter_tokens (id, election_id, token_hash, issued_to)
		VALUES ($1, $2, $3, $4)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare token statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tokens {
		var issuedTo sql.NullString
		if t.IssuedTo != "" {
			issuedTo = sql.NullString{String: t.IssuedTo, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.ElectionID, t.TokenHash, issuedTo); err != nil {
			return fmt.Errorf("failed to insert token: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *tokenRepository) GetUnusedByHash(ctx context.Context, tokenHash string) (*domain.VoterToken, error) {
	query := `
		SELECT id, election_id, token_hash, issued_to, created_at
		FROM voter_tokens
		WHERE token_hash = $1 AND used_at IS NULL
	`
	var (
		token    domain.VoterToken
		issuedTo sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.ElectionID, &token.TokenHash, &issuedTo, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	token.IssuedTo = issuedTo.String
	return &token, nil
}

func (r *tokenRepository) Stats(ctx context.Context, electionID uuid.UUID) (*domain.TokenStats, error) {
	query := `
		SELECT COUNT(*), COUNT(used_at)
		FROM voter_tokens
		WHERE election_id = $1
	`
	var stats domain.TokenStats
	if err := r.db.QueryRowContext(ctx, query, electionID).Scan(&stats.Total, &stats.Used); err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}
	stats.Unused = stats.Total - stats.Used
	return &stats, nil
}
