package service

import (
	"context"

	"hearth/internal/domain"
)

// ProposalService defines the proposal lifecycle operations
type ProposalService interface {
	// Create creates a DRAFT proposal with its ballot options
	Create(ctx context.Context, groupID, userID int64, req *domain.CreateProposalRequest) (*domain.Proposal, error)

	// Update edits a DRAFT proposal; creator only
	Update(ctx context.Context, proposalID, userID int64, req *domain.UpdateProposalRequest) (*domain.Proposal, error)

	// Get retrieves a proposal with its ballot options; member only
	Get(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error)

	// List retrieves a group's proposals with optional status filter
	List(ctx context.Context, groupID, userID int64, filter domain.ProposalFilter) ([]*domain.Proposal, error)

	// GetResults summarizes per-option counts, quorum standing, and the
	// winner (once closed); member only
	GetResults(ctx context.Context, proposalID, userID int64) (*domain.ProposalResults, error)

	// Open transitions DRAFT to OPEN; creator only
	Open(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error)

	// Cancel transitions DRAFT or OPEN to CANCELLED; creator or admin
	Cancel(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error)

	// Close runs the quorum gate and tally, transitioning OPEN to PASSED or
	// REJECTED exactly once
	Close(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error)

	// Execute applies the winning option's side effect and transitions
	// PASSED to EXECUTED exactly once
	Execute(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error)
}

// VoteService defines the vote ledger operations
type VoteService interface {
	// CastVote records or replaces the user's vote on an OPEN proposal
	CastVote(ctx context.Context, proposalID, userID int64, req *domain.CastVoteRequest) (*domain.VoteRecord, error)

	// CastRankedVotes replaces the user's full ranked ballot
	CastRankedVotes(ctx context.Context, proposalID, userID int64, req *domain.CastRankedVotesRequest) ([]domain.VoteRecord, error)

	// GetUserVote retrieves the caller's vote, or nil if they have not voted
	GetUserVote(ctx context.Context, proposalID, userID int64) (*domain.VoteRecord, error)
}

// DelegationService records proxy-voting arrangements
type DelegationService interface {
	// Create stores a delegation record
	Create(ctx context.Context, groupID, userID int64, req *domain.CreateDelegationRequest) (*domain.VoteDelegation, error)

	// List retrieves a group's delegation records
	List(ctx context.Context, groupID, userID int64) ([]domain.VoteDelegation, error)
}

// Services aggregates all service interfaces
type Services struct {
	Proposal   ProposalService
	Vote       VoteService
	Delegation DelegationService
}
