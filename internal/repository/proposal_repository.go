package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hearth/internal/domain"
	"hearth/pkg/database"

	"github.com/jackc/pgx/v5"
)

type PostgresProposalRepository struct {
	db *database.PostgresDB
}

func NewProposalRepository(db *database.PostgresDB) *PostgresProposalRepository {
	return &PostgresProposalRepository{db: db}
}

const proposalColumns = `
	id, group_id, created_by_id, title, COALESCE(description, ''), type, strategy, status,
	deadline_at, min_quorum_percentage, linked_expense_id, linked_chore_id, linked_pet_id,
	execution_result, executed_at, created_at, updated_at
`

// Create inserts a proposal and its ballot options in one transaction
func (r *PostgresProposalRepository) Create(ctx context.Context, proposal *domain.Proposal, options []domain.BallotOptionInput) (*domain.Proposal, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO proposals (
			group_id, created_by_id, title, description, type, strategy, status,
			deadline_at, min_quorum_percentage, linked_expense_id, linked_chore_id, linked_pet_id
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		proposal.GroupID,
		proposal.CreatedByID,
		proposal.Title,
		proposal.Description,
		proposal.Type,
		proposal.Strategy,
		proposal.Status,
		proposal.DeadlineAt,
		proposal.MinQuorumPercentage,
		proposal.LinkedExpenseID,
		proposal.LinkedChoreID,
		proposal.LinkedPetID,
	).Scan(&proposal.ID, &proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	optionQuery := `
		INSERT INTO ballot_options (proposal_id, text, display_order, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	proposal.BallotOptions = make([]domain.BallotOption, 0, len(options))
	for idx, opt := range options {
		displayOrder := idx
		if opt.DisplayOrder != nil {
			displayOrder = *opt.DisplayOrder
		}

		var metadata []byte
		if opt.Metadata != nil {
			metadata, err = json.Marshal(opt.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal option metadata: %w", err)
			}
		}

		option := domain.BallotOption{
			ProposalID:   proposal.ID,
			Text:         opt.Text,
			DisplayOrder: displayOrder,
			Metadata:     opt.Metadata,
		}
		err = tx.QueryRow(ctx, optionQuery, proposal.ID, opt.Text, displayOrder, metadata).
			Scan(&option.ID, &option.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create ballot option: %w", err)
		}
		proposal.BallotOptions = append(proposal.BallotOptions, option)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit proposal: %w", err)
	}

	return proposal, nil
}

// GetByID retrieves a proposal with its ballot options
func (r *PostgresProposalRepository) GetByID(ctx context.Context, id int64) (*domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	proposal, err := scanProposal(r.db.Pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	options, err := r.ListOptions(ctx, proposal.ID)
	if err != nil {
		return nil, err
	}
	proposal.BallotOptions = options

	return proposal, nil
}

// List retrieves proposals for a group, newest first
func (r *PostgresProposalRepository) List(ctx context.Context, groupID int64, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE group_id = $1`
	args := []interface{}{groupID}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*domain.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proposals: %w", err)
	}

	for _, proposal := range proposals {
		options, err := r.ListOptions(ctx, proposal.ID)
		if err != nil {
			return nil, err
		}
		proposal.BallotOptions = options
	}

	return proposals, nil
}

// UpdateDraft persists the mutable fields of a DRAFT proposal
func (r *PostgresProposalRepository) UpdateDraft(ctx context.Context, proposal *domain.Proposal) error {
	query := `
		UPDATE proposals
		SET title = $2, description = NULLIF($3, ''), deadline_at = $4,
		    min_quorum_percentage = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		proposal.ID,
		proposal.Title,
		proposal.Description,
		proposal.DeadlineAt,
		proposal.MinQuorumPercentage,
	).Scan(&proposal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}

	return nil
}

// TransitionStatus moves a proposal between statuses with a guarded update
func (r *PostgresProposalRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.ProposalStatus) (bool, error) {
	query := `
		UPDATE proposals
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition proposal status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// CloseWithResult transitions OPEN to the final status and persists the tally
// summary in the same statement, so a second close cannot overwrite it
func (r *PostgresProposalRepository) CloseWithResult(ctx context.Context, id int64, to domain.ProposalStatus, result domain.ExecutionResult) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal execution result: %w", err)
	}

	query := `
		UPDATE proposals
		SET status = $2, execution_result = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'OPEN'
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, to, payload)
	if err != nil {
		return false, fmt.Errorf("failed to close proposal: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkExecuted transitions PASSED to EXECUTED exactly once
func (r *PostgresProposalRepository) MarkExecuted(ctx context.Context, id int64, result domain.ExecutionResult, executedAt time.Time) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal execution result: %w", err)
	}

	query := `
		UPDATE proposals
		SET status = 'EXECUTED', execution_result = $2, executed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'PASSED' AND executed_at IS NULL
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, payload, executedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark proposal executed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetOption retrieves a ballot option scoped to a proposal
func (r *PostgresProposalRepository) GetOption(ctx context.Context, optionID, proposalID int64) (*domain.BallotOption, error) {
	query := `
		SELECT id, proposal_id, text, display_order, metadata, vote_count, created_at
		FROM ballot_options
		WHERE id = $1 AND proposal_id = $2
	`

	option, err := scanBallotOption(r.db.Pool.QueryRow(ctx, query, optionID, proposalID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot option: %w", err)
	}

	return option, nil
}

// ListOptions retrieves all ballot options for a proposal in display order
func (r *PostgresProposalRepository) ListOptions(ctx context.Context, proposalID int64) ([]domain.BallotOption, error) {
	query := `
		SELECT id, proposal_id, text, display_order, metadata, vote_count, created_at
		FROM ballot_options
		WHERE proposal_id = $1
		ORDER BY display_order ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballot options: %w", err)
	}
	defer rows.Close()

	var options []domain.BallotOption
	for rows.Next() {
		option, err := scanBallotOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ballot option: %w", err)
		}
		options = append(options, *option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ballot options: %w", err)
	}

	return options, nil
}

// scanProposal reads one proposal row; JSON columns come back as raw bytes
func scanProposal(row pgx.Row) (*domain.Proposal, error) {
	var proposal domain.Proposal
	var executionResult []byte

	err := row.Scan(
		&proposal.ID,
		&proposal.GroupID,
		&proposal.CreatedByID,
		&proposal.Title,
		&proposal.Description,
		&proposal.Type,
		&proposal.Strategy,
		&proposal.Status,
		&proposal.DeadlineAt,
		&proposal.MinQuorumPercentage,
		&proposal.LinkedExpenseID,
		&proposal.LinkedChoreID,
		&proposal.LinkedPetID,
		&executionResult,
		&proposal.ExecutedAt,
		&proposal.CreatedAt,
		&proposal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(executionResult) > 0 {
		if err := json.Unmarshal(executionResult, &proposal.ExecutionResult); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution result: %w", err)
		}
	}

	return &proposal, nil
}

func scanBallotOption(row pgx.Row) (*domain.BallotOption, error) {
	var option domain.BallotOption
	var metadata []byte

	err := row.Scan(
		&option.ID,
		&option.ProposalID,
		&option.Text,
		&option.DisplayOrder,
		&metadata,
		&option.VoteCount,
		&option.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &option.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal option metadata: %w", err)
		}
	}

	return &option, nil
}
