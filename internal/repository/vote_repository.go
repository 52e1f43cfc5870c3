package repository

import (
	"context"
	"fmt"

	"hearth/internal/domain"
	"hearth/pkg/database"

	"github.com/jackc/pgx/v5"
)

type PostgresVoteRepository struct {
	db *database.PostgresDB
}

func NewVoteRepository(db *database.PostgresDB) *PostgresVoteRepository {
	return &PostgresVoteRepository{db: db}
}

// Upsert inserts the user's vote or replaces their existing one, adjusting
// the cached option counters by the weight delta. The existing vote row is
// locked so concurrent resubmissions from the same user serialize; concurrent
// first-time votes are arbitrated by the partial unique index on
// (proposal_id, user_id) WHERE rank_order IS NULL, and the loser falls back
// to the locked-row update path.
func (r *PostgresVoteRepository) Upsert(ctx context.Context, vote *domain.VoteRecord) (*domain.VoteRecord, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, found, err := lockCurrentVote(ctx, tx, vote.ProposalID, vote.UserID)
	if err != nil {
		return nil, err
	}

	if !found {
		err = tx.QueryRow(ctx, `
			INSERT INTO vote_records (proposal_id, user_id, ballot_option_id, weight, is_anonymous, voted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (proposal_id, user_id) WHERE rank_order IS NULL DO NOTHING
			RETURNING id
		`, vote.ProposalID, vote.UserID, vote.BallotOptionID, vote.Weight, vote.IsAnonymous, vote.VotedAt).Scan(&vote.ID)

		switch err {
		case nil:
			_, err = tx.Exec(ctx, `
				UPDATE ballot_options SET vote_count = vote_count + $2 WHERE id = $1
			`, vote.BallotOptionID, vote.Weight)
			if err != nil {
				return nil, fmt.Errorf("failed to increment option counter: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, fmt.Errorf("failed to commit vote: %w", err)
			}
			return vote, nil

		case pgx.ErrNoRows:
			// Another transaction inserted first; its row is visible once it
			// commits, so reread and take the update path
			existing, found, err = lockCurrentVote(ctx, tx, vote.ProposalID, vote.UserID)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("failed to lock vote after insert conflict")
			}

		default:
			return nil, fmt.Errorf("failed to insert vote: %w", err)
		}
	}

	// Re-vote: move the old weight off the previous option and apply the
	// new weight, in one atomic unit
	if existing.optionID != vote.BallotOptionID {
		_, err = tx.Exec(ctx, `
			UPDATE ballot_options
			SET vote_count = GREATEST(0, vote_count - $2)
			WHERE id = $1
		`, existing.optionID, existing.weight)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement old option counter: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE ballot_options SET vote_count = vote_count + $2 WHERE id = $1
		`, vote.BallotOptionID, vote.Weight)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE ballot_options SET vote_count = vote_count + $2 WHERE id = $1
		`, vote.BallotOptionID, vote.Weight-existing.weight)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust option counter: %w", err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE vote_records
		SET ballot_option_id = $2, weight = $3, is_anonymous = $4, voted_at = $5
		WHERE id = $1
		RETURNING id
	`, existing.id, vote.BallotOptionID, vote.Weight, vote.IsAnonymous, vote.VotedAt).Scan(&vote.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update vote: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	return vote, nil
}

type currentVote struct {
	id       int64
	optionID int64
	weight   int
}

func lockCurrentVote(ctx context.Context, tx pgx.Tx, proposalID, userID int64) (currentVote, bool, error) {
	var v currentVote
	err := tx.QueryRow(ctx, `
		SELECT id, ballot_option_id, weight
		FROM vote_records
		WHERE proposal_id = $1 AND user_id = $2
		FOR UPDATE
	`, proposalID, userID).Scan(&v.id, &v.optionID, &v.weight)
	if err == pgx.ErrNoRows {
		return currentVote{}, false, nil
	}
	if err != nil {
		return currentVote{}, false, fmt.Errorf("failed to look up existing vote: %w", err)
	}
	return v, true, nil
}

// ReplaceRanked deletes the user's prior ranked set and inserts the new one,
// keeping the cached first-preference counters in step
func (r *PostgresVoteRepository) ReplaceRanked(ctx context.Context, proposalID, userID int64, votes []domain.VoteRecord) ([]domain.VoteRecord, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT ballot_option_id, weight
		FROM vote_records
		WHERE proposal_id = $1 AND user_id = $2
		FOR UPDATE
	`, proposalID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock existing votes: %w", err)
	}

	type prior struct {
		optionID int64
		weight   int
	}
	var priors []prior
	for rows.Next() {
		var p prior
		if err := rows.Scan(&p.optionID, &p.weight); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan existing vote: %w", err)
		}
		priors = append(priors, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read existing votes: %w", err)
	}

	for _, p := range priors {
		_, err = tx.Exec(ctx, `
			UPDATE ballot_options
			SET vote_count = GREATEST(0, vote_count - $2)
			WHERE id = $1
		`, p.optionID, p.weight)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement option counter: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM vote_records WHERE proposal_id = $1 AND user_id = $2
	`, proposalID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete existing votes: %w", err)
	}

	for i := range votes {
		vote := &votes[i]
		err = tx.QueryRow(ctx, `
			INSERT INTO vote_records (proposal_id, user_id, ballot_option_id, rank_order, weight, is_anonymous, voted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, vote.ProposalID, vote.UserID, vote.BallotOptionID, vote.RankOrder, vote.Weight, vote.IsAnonymous, vote.VotedAt).Scan(&vote.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert ranked vote: %w", err)
		}

		// The cache tracks first preferences only
		if vote.RankOrder != nil && *vote.RankOrder == 1 {
			_, err = tx.Exec(ctx, `
				UPDATE ballot_options SET vote_count = vote_count + 1 WHERE id = $1
			`, vote.BallotOptionID)
			if err != nil {
				return nil, fmt.Errorf("failed to increment option counter: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ranked votes: %w", err)
	}

	return votes, nil
}

// GetUserVote retrieves a user's vote; for ranked ballots this is the
// highest-preference record
func (r *PostgresVoteRepository) GetUserVote(ctx context.Context, proposalID, userID int64) (*domain.VoteRecord, error) {
	query := `
		SELECT id, proposal_id, user_id, ballot_option_id, rank_order, weight, is_anonymous, voted_at
		FROM vote_records
		WHERE proposal_id = $1 AND user_id = $2
		ORDER BY rank_order ASC NULLS FIRST
		LIMIT 1
	`

	var vote domain.VoteRecord
	err := r.db.Pool.QueryRow(ctx, query, proposalID, userID).Scan(
		&vote.ID,
		&vote.ProposalID,
		&vote.UserID,
		&vote.BallotOptionID,
		&vote.RankOrder,
		&vote.Weight,
		&vote.IsAnonymous,
		&vote.VotedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user vote: %w", err)
	}

	return &vote, nil
}

// ListByProposal retrieves the full vote ledger for a proposal
func (r *PostgresVoteRepository) ListByProposal(ctx context.Context, proposalID int64) ([]domain.VoteRecord, error) {
	query := `
		SELECT id, proposal_id, user_id, ballot_option_id, rank_order, weight, is_anonymous, voted_at
		FROM vote_records
		WHERE proposal_id = $1
		ORDER BY user_id ASC, rank_order ASC NULLS FIRST
	`

	rows, err := r.db.Pool.Query(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.VoteRecord
	for rows.Next() {
		var vote domain.VoteRecord
		err := rows.Scan(
			&vote.ID,
			&vote.ProposalID,
			&vote.UserID,
			&vote.BallotOptionID,
			&vote.RankOrder,
			&vote.Weight,
			&vote.IsAnonymous,
			&vote.VotedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}

	return votes, nil
}

// CountDistinctVoters counts distinct users who voted on a proposal
func (r *PostgresVoteRepository) CountDistinctVoters(ctx context.Context, proposalID int64) (int, error) {
	var count int
	query := `SELECT COUNT(DISTINCT user_id) FROM vote_records WHERE proposal_id = $1`

	err := r.db.Pool.QueryRow(ctx, query, proposalID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count voters: %w", err)
	}

	return count, nil
}
