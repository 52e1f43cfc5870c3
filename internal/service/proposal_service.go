package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"hearth/internal/domain"
	"hearth/internal/repository"
	"hearth/internal/service/execution"
	"hearth/internal/service/tally"
	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

// proposalService implements ProposalService on top of Postgres repositories.
// Status transitions are enforced by guarded updates in storage, so two
// concurrent callers racing the same transition resolve to one winner and one
// conflict regardless of what each read beforehand.
type proposalService struct {
	proposals  repository.ProposalRepository
	votes      repository.VoteRepository
	groups     repository.GroupRepository
	dispatcher *execution.Dispatcher
	cache      *CacheService
	log        *logger.Logger
}

// NewProposalService creates a new proposal lifecycle service
func NewProposalService(
	repos *repository.Repositories,
	dispatcher *execution.Dispatcher,
	cache *CacheService,
	log *logger.Logger,
) ProposalService {
	return &proposalService{
		proposals:  repos.Proposal,
		votes:      repos.Vote,
		groups:     repos.Group,
		dispatcher: dispatcher,
		cache:      cache,
		log:        log,
	}
}

func (s *proposalService) Create(ctx context.Context, groupID, userID int64, req *domain.CreateProposalRequest) (*domain.Proposal, error) {
	if req.Title == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidOptions, "title is required")
	}
	if !domain.ValidProposalType(req.Type) {
		return nil, errors.NewValidationError(errors.CodeInvalidOptions, fmt.Sprintf("unknown proposal type: %s", req.Type))
	}
	if !domain.ValidVotingStrategy(req.Strategy) {
		return nil, errors.NewValidationError(errors.CodeInvalidStrategy, fmt.Sprintf("unknown voting strategy: %s", req.Strategy))
	}
	if len(req.BallotOptions) < 2 {
		return nil, errors.NewValidationError(errors.CodeInsufficientOptions, "a proposal needs at least two ballot options")
	}
	for _, opt := range req.BallotOptions {
		if opt.Text == "" {
			return nil, errors.NewValidationError(errors.CodeInvalidOptions, "ballot option text is required")
		}
	}
	if req.MinQuorumPercentage != nil && (*req.MinQuorumPercentage < 0 || *req.MinQuorumPercentage > 100) {
		return nil, errors.NewValidationError(errors.CodeInvalidOptions, "min_quorum_percentage must be between 0 and 100")
	}
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	proposal := &domain.Proposal{
		GroupID:             groupID,
		CreatedByID:         userID,
		Title:               req.Title,
		Description:         req.Description,
		Type:                req.Type,
		Strategy:            req.Strategy,
		Status:              domain.ProposalDraft,
		DeadlineAt:          req.DeadlineAt,
		MinQuorumPercentage: req.MinQuorumPercentage,
		LinkedExpenseID:     req.LinkedExpenseID,
		LinkedChoreID:       req.LinkedChoreID,
		LinkedPetID:         req.LinkedPetID,
	}

	created, err := s.proposals.Create(ctx, proposal, req.BallotOptions)
	if err != nil {
		return nil, errors.NewInternalError("failed to create proposal", err)
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id": created.ID,
		"group_id":    groupID,
		"created_by":  userID,
		"type":        created.Type,
		"strategy":    created.Strategy,
	}).Info("Proposal created")

	s.cache.InvalidateProposalCaches(created.ID, groupID)
	return created, nil
}

func (s *proposalService) Update(ctx context.Context, proposalID, userID int64, req *domain.UpdateProposalRequest) (*domain.Proposal, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.CreatedByID != userID {
		return nil, errors.NewForbiddenError(errors.CodeNotCreator, "only the creator can edit a proposal")
	}
	if proposal.Status != domain.ProposalDraft {
		return nil, errors.NewConflictError(errors.CodeProposalNotDraft, "only draft proposals can be edited")
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, errors.NewValidationError(errors.CodeInvalidOptions, "title cannot be empty")
		}
		proposal.Title = *req.Title
	}
	if req.Description != nil {
		proposal.Description = *req.Description
	}
	if req.DeadlineAt != nil {
		proposal.DeadlineAt = req.DeadlineAt
	}
	if req.MinQuorumPercentage != nil {
		if *req.MinQuorumPercentage < 0 || *req.MinQuorumPercentage > 100 {
			return nil, errors.NewValidationError(errors.CodeInvalidOptions, "min_quorum_percentage must be between 0 and 100")
		}
		proposal.MinQuorumPercentage = req.MinQuorumPercentage
	}

	if err := s.proposals.UpdateDraft(ctx, proposal); err != nil {
		return nil, errors.NewInternalError("failed to update proposal", err)
	}

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	return s.getProposal(ctx, proposalID)
}

func (s *proposalService) Get(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error) {
	proposal, err := s.cache.GetProposalWithCache(ctx, proposalID, s.proposals.GetByID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get proposal", err)
	}
	if proposal == nil {
		return nil, errors.NewNotFoundError(errors.CodeProposalNotFound, "proposal not found")
	}
	if err := s.requireMember(ctx, proposal.GroupID, userID); err != nil {
		return nil, err
	}
	return proposal, nil
}

func (s *proposalService) List(ctx context.Context, groupID, userID int64, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	proposals, err := s.proposals.List(ctx, groupID, filter)
	if err != nil {
		return nil, errors.NewInternalError("failed to list proposals", err)
	}
	return proposals, nil
}

func (s *proposalService) GetResults(ctx context.Context, proposalID, userID int64) (*domain.ProposalResults, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, proposal.GroupID, userID); err != nil {
		return nil, err
	}

	ledger, err := s.votes.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load vote ledger", err)
	}

	// Single votes count their weight; ranked ballots count first
	// preferences only, matching the denormalized option counters
	counts := make(map[int64]int, len(proposal.BallotOptions))
	totalVotes := 0
	for _, vote := range ledger {
		increment := 0
		switch {
		case vote.RankOrder == nil:
			increment = vote.Weight
		case *vote.RankOrder == 1:
			increment = 1
		}
		counts[vote.BallotOptionID] += increment
		totalVotes += increment
	}

	results := make([]domain.OptionResult, 0, len(proposal.BallotOptions))
	for _, opt := range proposal.BallotOptions {
		pct := 0.0
		if totalVotes > 0 {
			pct = math.Round(float64(counts[opt.ID])/float64(totalVotes)*10000) / 100
		}
		results = append(results, domain.OptionResult{
			OptionID:   opt.ID,
			OptionText: opt.Text,
			VoteCount:  counts[opt.ID],
			Percentage: pct,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].VoteCount > results[j].VoteCount
	})

	summary := &domain.ProposalResults{
		ProposalID:    proposalID,
		Status:        proposal.Status,
		TotalVotes:    totalVotes,
		QuorumReached: true,
		Results:       results,
	}

	if proposal.MinQuorumPercentage != nil {
		groupSize, err := s.groups.MemberCount(ctx, proposal.GroupID)
		if err != nil {
			return nil, errors.NewInternalError("failed to count group members", err)
		}
		if groupSize < 1 {
			groupSize = 1
		}
		voters, err := s.votes.CountDistinctVoters(ctx, proposalID)
		if err != nil {
			return nil, errors.NewInternalError("failed to count voters", err)
		}
		met, required := tally.QuorumMet(proposal.MinQuorumPercentage, groupSize, voters)
		summary.QuorumReached = met
		summary.RequiredQuorum = &required
	}

	if winnerID := winnerFromResult(proposal.ExecutionResult); winnerID != nil {
		summary.WinnerOptionID = winnerID
		if text, ok := proposal.ExecutionResult["winner_option_text"].(string); ok {
			summary.WinnerOptionText = &text
		}
	}

	return summary, nil
}

func (s *proposalService) Open(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.CreatedByID != userID {
		return nil, errors.NewForbiddenError(errors.CodeNotCreator, "only the creator can open a proposal")
	}
	if proposal.Status != domain.ProposalDraft {
		return nil, errors.NewConflictError(errors.CodeProposalNotDraft, "only draft proposals can be opened")
	}
	if len(proposal.BallotOptions) < 2 {
		return nil, errors.NewValidationError(errors.CodeInsufficientOptions, "a proposal needs at least two ballot options to open")
	}

	ok, err := s.proposals.TransitionStatus(ctx, proposalID, domain.ProposalDraft, domain.ProposalOpen)
	if err != nil {
		return nil, errors.NewInternalError("failed to open proposal", err)
	}
	if !ok {
		return nil, errors.NewConflictError(errors.CodeProposalNotDraft, "proposal is no longer a draft")
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id": proposalID,
		"group_id":    proposal.GroupID,
	}).Info("Proposal opened for voting")

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	return s.getProposal(ctx, proposalID)
}

func (s *proposalService) Cancel(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.CreatedByID != userID {
		admin, adminErr := s.groups.IsAdmin(ctx, proposal.GroupID, userID)
		if adminErr != nil {
			return nil, errors.NewInternalError("failed to check admin role", adminErr)
		}
		if !admin {
			return nil, errors.NewForbiddenError(errors.CodeNotCreator, "only the creator or a group admin can cancel a proposal")
		}
	}

	switch proposal.Status {
	case domain.ProposalDraft, domain.ProposalOpen:
	case domain.ProposalPassed:
		return nil, errors.NewConflictError(errors.CodeProposalPassed, "a passed proposal cannot be cancelled")
	case domain.ProposalExecuted:
		return nil, errors.NewConflictError(errors.CodeAlreadyExecuted, "an executed proposal cannot be cancelled")
	default:
		return nil, errors.NewConflictError(errors.CodeProposalNotOpen, "proposal is already decided")
	}

	ok, err := s.proposals.TransitionStatus(ctx, proposalID, proposal.Status, domain.ProposalCancelled)
	if err != nil {
		return nil, errors.NewInternalError("failed to cancel proposal", err)
	}
	if !ok {
		return nil, errors.NewConflictError(errors.CodeProposalNotOpen, "proposal changed status before it could be cancelled")
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id":  proposalID,
		"cancelled_by": userID,
	}).Info("Proposal cancelled")

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	return s.getProposal(ctx, proposalID)
}

func (s *proposalService) Close(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != domain.ProposalOpen {
		return nil, errors.NewConflictError(errors.CodeProposalNotOpen, "only open proposals can be closed")
	}
	if err := s.requireMember(ctx, proposal.GroupID, userID); err != nil {
		return nil, err
	}

	locked, err := s.cache.TryCloseLock(ctx, proposalID)
	if err != nil {
		s.log.WithError(err).Warn("Close lock unavailable, relying on guarded transition")
	} else if !locked {
		return nil, errors.NewConflictError(errors.CodeDecisionInProgress, "proposal is already being closed")
	}

	groupSize, err := s.groups.MemberCount(ctx, proposal.GroupID)
	if err != nil {
		return nil, errors.NewInternalError("failed to count group members", err)
	}
	if groupSize < 1 {
		groupSize = 1
	}

	voters, err := s.votes.CountDistinctVoters(ctx, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to count voters", err)
	}

	result := domain.ExecutionResult{
		"total_votes": voters,
		"group_size":  groupSize,
	}

	quorumMet, required := tally.QuorumMet(proposal.MinQuorumPercentage, groupSize, voters)
	result["quorum_met"] = quorumMet
	finalStatus := domain.ProposalRejected

	if !quorumMet {
		result["winner_option_id"] = nil
		result["winner_option_text"] = nil
		s.log.WithFields(map[string]interface{}{
			"proposal_id": proposalID,
			"voters":      voters,
			"required":    required,
		}).Info("Proposal rejected on quorum")
	} else {
		options, err := s.proposals.ListOptions(ctx, proposalID)
		if err != nil {
			return nil, errors.NewInternalError("failed to load ballot options", err)
		}
		ledger, err := s.votes.ListByProposal(ctx, proposalID)
		if err != nil {
			return nil, errors.NewInternalError("failed to load vote ledger", err)
		}

		strategy, err := tally.ForStrategy(proposal.Strategy)
		if err != nil {
			return nil, errors.NewValidationError(errors.CodeInvalidStrategy, err.Error())
		}
		outcome := strategy.Tally(options, ledger, groupSize)
		finalStatus = outcome.Status

		if outcome.WinnerOptionID != nil {
			result["winner_option_id"] = *outcome.WinnerOptionID
			for _, opt := range options {
				if opt.ID == *outcome.WinnerOptionID {
					result["winner_option_text"] = opt.Text
					break
				}
			}
		} else {
			result["winner_option_id"] = nil
			result["winner_option_text"] = nil
		}
	}

	ok, err := s.proposals.CloseWithResult(ctx, proposalID, finalStatus, result)
	if err != nil {
		return nil, errors.NewInternalError("failed to close proposal", err)
	}
	if !ok {
		return nil, errors.NewConflictError(errors.CodeProposalNotOpen, "proposal was closed concurrently")
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id": proposalID,
		"status":      finalStatus,
		"voters":      voters,
		"quorum_met":  quorumMet,
	}).Info("Proposal closed")

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	return s.getProposal(ctx, proposalID)
}

func (s *proposalService) Execute(ctx context.Context, proposalID, userID int64) (*domain.Proposal, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	switch proposal.Status {
	case domain.ProposalPassed:
	case domain.ProposalExecuted:
		return nil, errors.NewConflictError(errors.CodeAlreadyExecuted, "proposal has already been executed")
	default:
		return nil, errors.NewConflictError(errors.CodeProposalNotPassed, "only passed proposals can be executed")
	}
	if err := s.requireMember(ctx, proposal.GroupID, userID); err != nil {
		return nil, err
	}

	winnerID := winnerFromResult(proposal.ExecutionResult)
	if winnerID == nil {
		return nil, errors.NewValidationError(errors.CodeNoWinner, "proposal has no winning option to execute")
	}
	winner, err := s.proposals.GetOption(ctx, *winnerID, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load winning option", err)
	}
	if winner == nil {
		return nil, errors.NewNotFoundError(errors.CodeBallotOptionNotFound, "winning ballot option not found")
	}

	locked, err := s.cache.TryExecuteLock(ctx, proposalID)
	if err != nil {
		s.log.WithError(err).Warn("Execute lock unavailable, relying on guarded transition")
	} else if !locked {
		return nil, errors.NewConflictError(errors.CodeDecisionInProgress, "proposal is already being executed")
	}

	// Side effects run before the status flips so a failed dispatch leaves
	// the proposal PASSED and retryable
	effects, err := s.dispatcher.Dispatch(ctx, proposal, winner)
	if err != nil {
		return nil, err
	}

	merged := domain.ExecutionResult{}
	for k, v := range proposal.ExecutionResult {
		merged[k] = v
	}
	for k, v := range effects {
		merged[k] = v
	}

	ok, err := s.proposals.MarkExecuted(ctx, proposalID, merged, time.Now().UTC())
	if err != nil {
		return nil, errors.NewInternalError("failed to mark proposal executed", err)
	}
	if !ok {
		return nil, errors.NewConflictError(errors.CodeAlreadyExecuted, "proposal was executed concurrently")
	}

	s.log.WithFields(map[string]interface{}{
		"proposal_id": proposalID,
		"type":        proposal.Type,
		"winner_id":   *winnerID,
		"executed_by": userID,
	}).Info("Proposal executed")

	s.cache.InvalidateProposalCaches(proposalID, proposal.GroupID)
	return s.getProposal(ctx, proposalID)
}

// getProposal reads straight from storage; lifecycle decisions never trust a
// cached copy
func (s *proposalService) getProposal(ctx context.Context, proposalID int64) (*domain.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get proposal", err)
	}
	if proposal == nil {
		return nil, errors.NewNotFoundError(errors.CodeProposalNotFound, "proposal not found")
	}
	return proposal, nil
}

func (s *proposalService) requireMember(ctx context.Context, groupID, userID int64) error {
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return errors.NewInternalError("failed to check group membership", err)
	}
	if !member {
		return errors.NewForbiddenError(errors.CodeNotMember, "user is not a member of this group")
	}
	return nil
}

// winnerFromResult extracts the winning option ID stored at close time. The
// value round-trips through JSONB, so it may come back as several numeric
// types.
func winnerFromResult(result domain.ExecutionResult) *int64 {
	if result == nil {
		return nil
	}
	raw, ok := result["winner_option_id"]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case int64:
		return &v
	case int:
		id := int64(v)
		return &id
	case float64:
		id := int64(v)
		return &id
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return &id
		}
	}
	return nil
}
