package repository

import (
	"context"
	"fmt"

	"hearth/internal/domain"
	"hearth/pkg/database"
)

type PostgresDelegationRepository struct {
	db *database.PostgresDB
}

func NewDelegationRepository(db *database.PostgresDB) *PostgresDelegationRepository {
	return &PostgresDelegationRepository{db: db}
}

// Create inserts a delegation record
func (r *PostgresDelegationRepository) Create(ctx context.Context, delegation *domain.VoteDelegation) error {
	query := `
		INSERT INTO vote_delegations (group_id, delegator_id, delegate_id, topic_category, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		delegation.GroupID,
		delegation.DelegatorID,
		delegation.DelegateID,
		delegation.TopicCategory,
		delegation.StartDate,
		delegation.EndDate,
		delegation.IsActive,
	).Scan(&delegation.ID, &delegation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	return nil
}

// ListByGroup retrieves delegations for a group, newest first
func (r *PostgresDelegationRepository) ListByGroup(ctx context.Context, groupID int64) ([]domain.VoteDelegation, error) {
	query := `
		SELECT id, group_id, delegator_id, delegate_id, topic_category, start_date, end_date, is_active, created_at
		FROM vote_delegations
		WHERE group_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var delegations []domain.VoteDelegation
	for rows.Next() {
		var d domain.VoteDelegation
		err := rows.Scan(
			&d.ID,
			&d.GroupID,
			&d.DelegatorID,
			&d.DelegateID,
			&d.TopicCategory,
			&d.StartDate,
			&d.EndDate,
			&d.IsActive,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read delegations: %w", err)
	}

	return delegations, nil
}
