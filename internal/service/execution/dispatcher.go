package execution

import (
	"context"
	"encoding/json"

	"hearth/internal/domain"
	"hearth/internal/repository"
	"hearth/pkg/errors"
	"hearth/pkg/logger"

	"go.uber.org/zap"
)

// Executor applies one proposal type's side effect after a proposal passes.
// The returned map is merged into the proposal's execution result.
type Executor interface {
	Execute(ctx context.Context, proposal *domain.Proposal, winner *domain.BallotOption) (domain.ExecutionResult, error)
}

// Dispatcher routes a passed proposal to the executor registered for its
// type. Types without a registered executor have no side effect; recording
// the winner is sufficient.
type Dispatcher struct {
	executors map[domain.ProposalType]Executor
	log       *logger.Logger
}

func NewDispatcher(groups repository.GroupRepository, resources repository.ResourceRepository, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		executors: map[domain.ProposalType]Executor{
			domain.TypeExpenseRequest:  &expenseExecutor{resources: resources, log: log},
			domain.TypeChoreAssignment: &choreExecutor{resources: resources, log: log},
			domain.TypeKickUser:        &kickUserExecutor{groups: groups, log: log},
		},
		log: log,
	}
}

// Dispatch runs the side effect for the proposal's type and returns the keys
// to merge into the execution result. A type with no executor is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, proposal *domain.Proposal, winner *domain.BallotOption) (domain.ExecutionResult, error) {
	executor, ok := d.executors[proposal.Type]
	if !ok {
		return domain.ExecutionResult{}, nil
	}
	return executor.Execute(ctx, proposal, winner)
}

// expenseExecutor marks the linked expense approved
type expenseExecutor struct {
	resources repository.ResourceRepository
	log       *logger.Logger
}

func (e *expenseExecutor) Execute(ctx context.Context, proposal *domain.Proposal, winner *domain.BallotOption) (domain.ExecutionResult, error) {
	result := domain.ExecutionResult{}
	if proposal.LinkedExpenseID == nil {
		return result, nil
	}

	approved, err := e.resources.ApproveExpense(ctx, *proposal.LinkedExpenseID)
	if err != nil {
		return nil, err
	}
	if !approved {
		// Linked expense no longer exists; the proposal is still executed
		e.log.WithField("expense_id", *proposal.LinkedExpenseID).Warn("Linked expense not found during execution")
		return result, nil
	}

	result["expense_approved"] = true
	return result, nil
}

// choreExecutor approves the most recent assignment for the linked chore
type choreExecutor struct {
	resources repository.ResourceRepository
	log       *logger.Logger
}

func (e *choreExecutor) Execute(ctx context.Context, proposal *domain.Proposal, winner *domain.BallotOption) (domain.ExecutionResult, error) {
	result := domain.ExecutionResult{}
	if proposal.LinkedChoreID == nil {
		return result, nil
	}

	approved, err := e.resources.ApproveLatestChoreAssignment(ctx, *proposal.LinkedChoreID)
	if err != nil {
		return nil, err
	}
	if !approved {
		e.log.WithField("chore_id", *proposal.LinkedChoreID).Warn("No chore assignment found during execution")
		return result, nil
	}

	result["chore_assignment_approved"] = true
	return result, nil
}

// kickUserExecutor removes the member named in the winning option's metadata
type kickUserExecutor struct {
	groups repository.GroupRepository
	log    *logger.Logger
}

func (e *kickUserExecutor) Execute(ctx context.Context, proposal *domain.Proposal, winner *domain.BallotOption) (domain.ExecutionResult, error) {
	targetID, ok := kickTarget(winner)
	if !ok {
		return nil, errors.NewValidationError(errors.CodeMissingKickTarget, "Winning option metadata does not name a user to remove")
	}

	removed, err := e.groups.RemoveMember(ctx, proposal.GroupID, targetID)
	if err != nil {
		return nil, err
	}
	if !removed {
		e.log.WithFields(map[string]interface{}{
			"group_id": proposal.GroupID,
			"user_id":  targetID,
		}).Warn("Kick target was not a group member during execution")
	}

	e.log.Info("Removed group member by proposal",
		zap.Int64("group_id", proposal.GroupID),
		zap.Int64("user_id", targetID),
		zap.Int64("proposal_id", proposal.ID))

	return domain.ExecutionResult{"user_kicked": targetID}, nil
}

// kickTarget extracts the user id from option metadata. JSON numbers decode
// as float64, so both representations are accepted.
func kickTarget(winner *domain.BallotOption) (int64, bool) {
	if winner == nil || winner.Metadata == nil {
		return 0, false
	}
	raw, ok := winner.Metadata["user_id"]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
