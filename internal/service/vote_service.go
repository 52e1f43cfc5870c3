package service

import (
	"context"
	"time"

	"hearth/internal/domain"
	"hearth/internal/repository"
	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

// voteService implements VoteService. Counter maintenance lives in the
// repository transaction; this layer owns eligibility and payload checks.
type voteService struct {
	proposals repository.ProposalRepository
	votes     repository.VoteRepository
	groups    repository.GroupRepository
	cache     *CacheService
	log       *logger.Logger
}

// NewVoteService creates a new vote ledger service
func NewVoteService(repos *repository.Repositories, cache *CacheService, log *logger.Logger) VoteService {
	return &voteService{
		proposals: repos.Proposal,
		votes:     repos.Vote,
		groups:    repos.Group,
		cache:     cache,
		log:       log,
	}
}

func (s *voteService) CastVote(ctx context.Context, proposalID, userID int64, req *domain.CastVoteRequest) (*domain.VoteRecord, error) {
	proposal, err := s.votableProposal(ctx, proposalID, userID)
	if err != nil {
		return nil, err
	}
	// A single vote on a ranked proposal would sit alongside any earlier
	// ranked rows and corrupt the ballot
	if proposal.Strategy == domain.StrategyRankedChoice {
		return nil, errors.NewValidationError(errors.CodeInvalidStrategy, "ranked choice proposals only accept ranked ballots")
	}

	weight := req.Weight
	if weight == 0 {
		weight = 1
	}
	if weight < 1 {
		return nil, errors.NewValidationError(errors.CodeInvalidWeight, "vote weight must be at least 1")
	}

	option, err := s.proposals.GetOption(ctx, req.BallotOptionID, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get ballot option", err)
	}
	if option == nil {
		return nil, errors.NewNotFoundError(errors.CodeBallotOptionNotFound, "ballot option does not belong to this proposal")
	}

	vote := &domain.VoteRecord{
		ProposalID:     proposalID,
		UserID:         userID,
		BallotOptionID: req.BallotOptionID,
		Weight:         weight,
		IsAnonymous:    req.IsAnonymous,
		VotedAt:        time.Now().UTC(),
	}

	saved, err := s.votes.Upsert(ctx, vote)
	if err != nil {
		return nil, errors.NewInternalError("failed to record vote", err)
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id": proposalID,
		"user_id":     userID,
		"option_id":   req.BallotOptionID,
		"weight":      weight,
	}).Debug("Vote recorded")

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	if err := s.cache.InvalidateUserVoteCache(ctx, proposalID, userID); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate user vote cache")
	}
	return saved, nil
}

func (s *voteService) CastRankedVotes(ctx context.Context, proposalID, userID int64, req *domain.CastRankedVotesRequest) ([]domain.VoteRecord, error) {
	proposal, err := s.votableProposal(ctx, proposalID, userID)
	if err != nil {
		return nil, err
	}
	if proposal.Strategy != domain.StrategyRankedChoice {
		return nil, errors.NewValidationError(errors.CodeInvalidStrategy, "ranked ballots are only accepted on ranked choice proposals")
	}
	if len(req.Choices) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidRanking, "a ranked ballot needs at least one choice")
	}

	options, err := s.proposals.ListOptions(ctx, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load ballot options", err)
	}
	known := make(map[int64]bool, len(options))
	for _, opt := range options {
		known[opt.ID] = true
	}

	seenRanks := make(map[int]bool, len(req.Choices))
	seenOptions := make(map[int64]bool, len(req.Choices))
	for _, choice := range req.Choices {
		if choice.Rank < 1 {
			return nil, errors.NewValidationError(errors.CodeInvalidRanking, "ranks start at 1")
		}
		if seenRanks[choice.Rank] {
			return nil, errors.NewValidationError(errors.CodeInvalidRanking, "each rank may appear only once")
		}
		if seenOptions[choice.BallotOptionID] {
			return nil, errors.NewValidationError(errors.CodeInvalidRanking, "each option may be ranked only once")
		}
		if !known[choice.BallotOptionID] {
			return nil, errors.NewNotFoundError(errors.CodeBallotOptionNotFound, "ballot option does not belong to this proposal")
		}
		seenRanks[choice.Rank] = true
		seenOptions[choice.BallotOptionID] = true
	}

	now := time.Now().UTC()
	records := make([]domain.VoteRecord, 0, len(req.Choices))
	for _, choice := range req.Choices {
		rank := choice.Rank
		records = append(records, domain.VoteRecord{
			ProposalID:     proposalID,
			UserID:         userID,
			BallotOptionID: choice.BallotOptionID,
			RankOrder:      &rank,
			Weight:         1,
			IsAnonymous:    req.IsAnonymous,
			VotedAt:        now,
		})
	}

	saved, err := s.votes.ReplaceRanked(ctx, proposalID, userID, records)
	if err != nil {
		return nil, errors.NewInternalError("failed to record ranked ballot", err)
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id": proposalID,
		"user_id":     userID,
		"choices":     len(saved),
	}).Debug("Ranked ballot recorded")

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	if err := s.cache.InvalidateUserVoteCache(ctx, proposalID, userID); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate user vote cache")
	}
	return saved, nil
}

func (s *voteService) GetUserVote(ctx context.Context, proposalID, userID int64) (*domain.VoteRecord, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get proposal", err)
	}
	if proposal == nil {
		return nil, errors.NewNotFoundError(errors.CodeProposalNotFound, "proposal not found")
	}
	if err := s.requireMember(ctx, proposal.GroupID, userID); err != nil {
		return nil, err
	}

	vote, err := s.votes.GetUserVote(ctx, proposalID, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get user vote", err)
	}
	return vote, nil
}

// votableProposal loads the proposal and verifies it accepts ballots from
// this user right now
func (s *voteService) votableProposal(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get proposal", err)
	}
	if proposal == nil {
		return nil, errors.NewNotFoundError(errors.CodeProposalNotFound, "proposal not found")
	}
	if proposal.Status != domain.ProposalOpen {
		return nil, errors.NewConflictError(errors.CodeProposalNotOpen, "proposal is not open for voting")
	}
	if proposal.DeadlineAt != nil && time.Now().After(*proposal.DeadlineAt) {
		return nil, errors.NewConflictError(errors.CodeProposalExpired, "voting deadline has passed")
	}
	if err := s.requireMember(ctx, proposal.GroupID, userID); err != nil {
		return nil, err
	}
	return proposal, nil
}

func (s *voteService) requireMember(ctx context.Context, groupID, userID int64) error {
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return errors.NewInternalError("failed to check group membership", err)
	}
	if !member {
		return errors.NewForbiddenError(errors.CodeNotMember, "user is not a member of this group")
	}
	return nil
}
