package service

import (
	"context"
	"time"

	"hearth/internal/domain"
	"hearth/internal/repository"
	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

// delegationService records proxy-voting arrangements. Delegations are
// advisory bookkeeping; ballots are still cast by the delegate directly.
type delegationService struct {
	delegations repository.DelegationRepository
	groups      repository.GroupRepository
	log         *logger.Logger
}

// NewDelegationService creates a new delegation service
func NewDelegationService(repos *repository.Repositories, log *logger.Logger) DelegationService {
	return &delegationService{
		delegations: repos.Delegation,
		groups:      repos.Group,
		log:         log,
	}
}

func (s *delegationService) Create(ctx context.Context, groupID, userID int64, req *domain.CreateDelegationRequest) (*domain.VoteDelegation, error) {
	if req.DelegateID == userID {
		return nil, errors.NewValidationError(errors.CodeInvalidOptions, "cannot delegate votes to yourself")
	}
	topic := req.TopicCategory
	if topic == "" {
		topic = domain.TopicAll
	}
	if !domain.ValidDelegationTopic(topic) {
		return nil, errors.NewValidationError(errors.CodeInvalidOptions, "unknown delegation topic")
	}
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	delegateMember, err := s.groups.IsMember(ctx, groupID, req.DelegateID)
	if err != nil {
		return nil, errors.NewInternalError("failed to check delegate membership", err)
	}
	if !delegateMember {
		return nil, errors.NewForbiddenError(errors.CodeNotMember, "delegate is not a member of this group")
	}

	start := time.Now().UTC()
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil && !req.EndDate.After(start) {
		return nil, errors.NewValidationError(errors.CodeInvalidOptions, "end_date must be after start_date")
	}

	delegation := &domain.VoteDelegation{
		GroupID:       groupID,
		DelegatorID:   userID,
		DelegateID:    req.DelegateID,
		TopicCategory: topic,
		StartDate:     start,
		EndDate:       req.EndDate,
		IsActive:      true,
	}
	if err := s.delegations.Create(ctx, delegation); err != nil {
		return nil, errors.NewInternalError("failed to create delegation", err)
	}

	s.log.WithFields(map[string]interface{}{
		"group_id":  groupID,
		"delegator": userID,
		"delegate":  req.DelegateID,
		"topic":     topic,
	}).Info("Vote delegation created")

	return delegation, nil
}

func (s *delegationService) List(ctx context.Context, groupID, userID int64) ([]domain.VoteDelegation, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	delegations, err := s.delegations.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list delegations", err)
	}
	return delegations, nil
}

func (s *delegationService) requireMember(ctx context.Context, groupID, userID int64) error {
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return errors.NewInternalError("failed to check group membership", err)
	}
	if !member {
		return errors.NewForbiddenError(errors.CodeNotMember, "user is not a member of this group")
	}
	return nil
}
