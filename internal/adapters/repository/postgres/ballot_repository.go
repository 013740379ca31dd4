package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type ballotRepository struct {
	db *sql.DB
}

func NewBallotRepository(db *sql.DB) ports.BallotRepository {
	return &ballotRepository{
		db: db,
	}
}

func (r *ballotRepository) Submit(ctx context.Context, ballot *domain.Ballot, tokenID uuid.UUID) error {
	rankings, err := counting.EncodeRanking(ballot.Ranking)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The shared row lock makes a concurrent close wait for this ballot.
	var status domain.ElectionStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM elections WHERE id = $1 FOR SHARE`, ballot.ElectionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrElectionNotFound
		}
		return fmt.Errorf("failed to lock election: %w", err)
	}
	if status != domain.StatusOpen {
		return domain.ErrElectionNotOpen
	}

	queryBallot := `
		INSERT INTO ballots (election_id, rankings, salt, receipt_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, queryBallot, ballot.ElectionID, string(rankings), ballot.Salt, ballot.ReceiptHash).
		Scan(&ballot.ID, &ballot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ballot: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE voter_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to mark token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrTokenAlreadyUsed
	}

	queryUsage := `
		INSERT INTO token_usage (voter_token_id, receipt_hash)
		VALUES ($1, $2)
	`
	if _, err := tx.ExecContext(ctx, queryUsage, tokenID, ballot.ReceiptHash); err != nil {
		return fmt.Errorf("failed to record token usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *ballotRepository) ListByElection(ctx context.Context, electionID uuid.UUID) ([]domain.Ballot, error) {
	query := `
		SELECT id, election_id, rankings, salt, receipt_hash, created_at
		FROM ballots
		WHERE election_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ballots: %w", err)
	}
	defer rows.Close()

	var ballots []domain.Ballot
	for rows.Next() {
		var (
			b        domain.Ballot
			rankings []byte
		)
		if err := rows.Scan(&b.ID, &b.ElectionID, &rankings, &b.Salt, &b.ReceiptHash, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		if err := json.Unmarshal(rankings, &b.Ranking); err != nil {
			return nil, fmt.Errorf("failed to decode ranking of ballot %d: %w", b.ID, err)
		}
		ballots = append(ballots, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ballots: %w", err)
	}
	return ballots, nil
}

func (r *ballotRepository) ListReceipts(ctx context.Context, electionID uuid.UUID) ([]string, error) {
	query := `SELECT receipt_hash FROM ballots WHERE election_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipts: %w", err)
	}
	defer rows.Close()

	receipts := []string{}
	for rows.Next() {
		var receipt string
		if err := rows.Scan(&receipt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}
	return receipts, nil
}

func (r *ballotRepository) Timeline(ctx context.Context, electionID uuid.UUID) ([]domain.BallotsPerHour, error) {
	query := `
		SELECT date_trunc('hour', created_at) AS hour, COUNT(*)
		FROM ballots
		WHERE election_id = $1
		GROUP BY 1
		ORDER BY 1
	`
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot timeline: %w", err)
	}
	defer rows.Close()

	timeline := []domain.BallotsPerHour{}
	for rows.Next() {
		var bucket domain.BallotsPerHour
		if err := rows.Scan(&bucket.Hour, &bucket.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan timeline bucket: %w", err)
		}
		timeline = append(timeline, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline: %w", err)
	}
	return timeline, nil
}
