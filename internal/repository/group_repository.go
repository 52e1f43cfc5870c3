package repository

import (
	"context"
	"fmt"

	"hearth/pkg/database"

	"github.com/jackc/pgx/v5"
)

type PostgresGroupRepository struct {
	db *database.PostgresDB
}

func NewGroupRepository(db *database.PostgresDB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

// IsMember reports whether the user belongs to the group
func (r *PostgresGroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`

	err := r.db.Pool.QueryRow(ctx, query, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

// IsAdmin reports whether the user is a group admin
func (r *PostgresGroupRepository) IsAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	var role string
	query := `SELECT role FROM group_members WHERE group_id = $1 AND user_id = $2`

	err := r.db.Pool.QueryRow(ctx, query, groupID, userID).Scan(&role)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}

	return role == "admin", nil
}

// MemberCount returns the group size used for quorum calculations
func (r *PostgresGroupRepository) MemberCount(ctx context.Context, groupID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1`

	err := r.db.Pool.QueryRow(ctx, query, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}

	return count, nil
}

// RemoveMember removes a user from the group
func (r *PostgresGroupRepository) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
