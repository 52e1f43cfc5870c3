package repository

import (
	"context"
	"fmt"

	"hearth/pkg/database"
)

// PostgresResourceRepository touches the records owned by the finance and
// chores modules that a passed proposal is allowed to modify
type PostgresResourceRepository struct {
	db *database.PostgresDB
}

func NewResourceRepository(db *database.PostgresDB) *PostgresResourceRepository {
	return &PostgresResourceRepository{db: db}
}

// ApproveExpense marks the linked expense approved
func (r *PostgresResourceRepository) ApproveExpense(ctx context.Context, expenseID int64) (bool, error) {
	query := `UPDATE expenses SET is_approved = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to approve expense: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ApproveLatestChoreAssignment approves the most recently created assignment
// for the chore
func (r *PostgresResourceRepository) ApproveLatestChoreAssignment(ctx context.Context, choreID int64) (bool, error) {
	query := `
		UPDATE chore_assignments
		SET status = 'APPROVED', updated_at = NOW()
		WHERE id = (
			SELECT id FROM chore_assignments
			WHERE chore_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)
	`

	tag, err := r.db.Pool.Exec(ctx, query, choreID)
	if err != nil {
		return false, fmt.Errorf("failed to approve chore assignment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
