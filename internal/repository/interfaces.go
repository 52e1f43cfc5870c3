package repository

import (
	"context"
	"time"

	"hearth/internal/domain"
)

// ProposalRepository defines the interface for proposal data operations
type ProposalRepository interface {
	// Create inserts a proposal and its ballot options in one transaction
	Create(ctx context.Context, proposal *domain.Proposal, options []domain.BallotOptionInput) (*domain.Proposal, error)

	// GetByID retrieves a proposal with its ballot options
	GetByID(ctx context.Context, id int64) (*domain.Proposal, error)

	// List retrieves proposals for a group, newest first
	List(ctx context.Context, groupID int64, filter domain.ProposalFilter) ([]*domain.Proposal, error)

	// UpdateDraft persists the mutable fields of a DRAFT proposal
	UpdateDraft(ctx context.Context, proposal *domain.Proposal) error

	// TransitionStatus moves a proposal from one status to another. Returns
	// false when the proposal was not in the expected status, so callers can
	// surface a conflict without a prior read racing the update.
	TransitionStatus(ctx context.Context, id int64, from, to domain.ProposalStatus) (bool, error)

	// CloseWithResult transitions OPEN to the final status and persists the
	// tally summary in the same statement
	CloseWithResult(ctx context.Context, id int64, to domain.ProposalStatus, result domain.ExecutionResult) (bool, error)

	// MarkExecuted transitions PASSED to EXECUTED, merging the execution
	// result and stamping executed_at exactly once
	MarkExecuted(ctx context.Context, id int64, result domain.ExecutionResult, executedAt time.Time) (bool, error)

	// GetOption retrieves a ballot option scoped to a proposal
	GetOption(ctx context.Context, optionID, proposalID int64) (*domain.BallotOption, error)

	// ListOptions retrieves all ballot options for a proposal in display order
	ListOptions(ctx context.Context, proposalID int64) ([]domain.BallotOption, error)
}

// VoteRepository defines the interface for vote ledger operations
type VoteRepository interface {
	// Upsert inserts the user's vote or replaces their existing one,
	// adjusting the cached option counters by the weight delta. The whole
	// mutation is one transaction.
	Upsert(ctx context.Context, vote *domain.VoteRecord) (*domain.VoteRecord, error)

	// ReplaceRanked deletes the user's prior ranked set and inserts the new
	// one in a single transaction, maintaining first-preference counters
	ReplaceRanked(ctx context.Context, proposalID, userID int64, votes []domain.VoteRecord) ([]domain.VoteRecord, error)

	// GetUserVote retrieves a user's vote (rank 1 for ranked ballots)
	GetUserVote(ctx context.Context, proposalID, userID int64) (*domain.VoteRecord, error)

	// ListByProposal retrieves the full vote ledger for a proposal
	ListByProposal(ctx context.Context, proposalID int64) ([]domain.VoteRecord, error)

	// CountDistinctVoters counts distinct users who voted on a proposal
	CountDistinctVoters(ctx context.Context, proposalID int64) (int, error)
}

// GroupRepository defines the membership capability consumed by governance
type GroupRepository interface {
	// IsMember reports whether the user belongs to the group
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)

	// IsAdmin reports whether the user is a group admin
	IsAdmin(ctx context.Context, groupID, userID int64) (bool, error)

	// MemberCount returns the group size used for quorum calculations
	MemberCount(ctx context.Context, groupID int64) (int, error)

	// RemoveMember removes a user from the group; false when no row matched
	RemoveMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// ResourceRepository covers the external records a passed proposal can modify
type ResourceRepository interface {
	// ApproveExpense marks the linked expense approved; false when absent
	ApproveExpense(ctx context.Context, expenseID int64) (bool, error)

	// ApproveLatestChoreAssignment approves the most recently created
	// assignment for the chore; false when none exists
	ApproveLatestChoreAssignment(ctx context.Context, choreID int64) (bool, error)
}

// DelegationRepository stores proxy-voting records
type DelegationRepository interface {
	// Create inserts a delegation record
	Create(ctx context.Context, delegation *domain.VoteDelegation) error

	// ListByGroup retrieves delegations for a group, newest first
	ListByGroup(ctx context.Context, groupID int64) ([]domain.VoteDelegation, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Proposal   ProposalRepository
	Vote       VoteRepository
	Group      GroupRepository
	Resource   ResourceRepository
	Delegation DelegationRepository
}
