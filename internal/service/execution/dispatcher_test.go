package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/domain"
	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

type fakeGroupRepo struct {
	removed      []int64
	removeResult bool
}

func (f *fakeGroupRepo) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	return true, nil
}

func (f *fakeGroupRepo) IsAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	return false, nil
}

func (f *fakeGroupRepo) MemberCount(ctx context.Context, groupID int64) (int, error) {
	return 4, nil
}

func (f *fakeGroupRepo) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	f.removed = append(f.removed, userID)
	return f.removeResult, nil
}

type fakeResourceRepo struct {
	approvedExpenses []int64
	approvedChores   []int64
	expenseFound     bool
	choreFound       bool
}

func (f *fakeResourceRepo) ApproveExpense(ctx context.Context, expenseID int64) (bool, error) {
	f.approvedExpenses = append(f.approvedExpenses, expenseID)
	return f.expenseFound, nil
}

func (f *fakeResourceRepo) ApproveLatestChoreAssignment(ctx context.Context, choreID int64) (bool, error) {
	f.approvedChores = append(f.approvedChores, choreID)
	return f.choreFound, nil
}

func testDispatcher(t *testing.T, groups *fakeGroupRepo, resources *fakeResourceRepo) *Dispatcher {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return NewDispatcher(groups, resources, log)
}

func TestDispatchExpenseRequest(t *testing.T) {
	groups := &fakeGroupRepo{}
	resources := &fakeResourceRepo{expenseFound: true}
	d := testDispatcher(t, groups, resources)

	expenseID := int64(77)
	proposal := &domain.Proposal{
		ID:              1,
		GroupID:         5,
		Type:            domain.TypeExpenseRequest,
		LinkedExpenseID: &expenseID,
	}

	result, err := d.Dispatch(context.Background(), proposal, &domain.BallotOption{ID: 10})
	require.NoError(t, err)
	assert.Equal(t, true, result["expense_approved"])
	assert.Equal(t, []int64{77}, resources.approvedExpenses)
}

func TestDispatchExpenseMissingResource(t *testing.T) {
	groups := &fakeGroupRepo{}
	resources := &fakeResourceRepo{expenseFound: false}
	d := testDispatcher(t, groups, resources)

	expenseID := int64(77)
	proposal := &domain.Proposal{
		ID:              1,
		GroupID:         5,
		Type:            domain.TypeExpenseRequest,
		LinkedExpenseID: &expenseID,
	}

	result, err := d.Dispatch(context.Background(), proposal, &domain.BallotOption{ID: 10})
	require.NoError(t, err)
	assert.NotContains(t, result, "expense_approved")
}

func TestDispatchExpenseWithoutLink(t *testing.T) {
	groups := &fakeGroupRepo{}
	resources := &fakeResourceRepo{expenseFound: true}
	d := testDispatcher(t, groups, resources)

	proposal := &domain.Proposal{ID: 1, GroupID: 5, Type: domain.TypeExpenseRequest}

	result, err := d.Dispatch(context.Background(), proposal, &domain.BallotOption{ID: 10})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Empty(t, resources.approvedExpenses)
}

func TestDispatchChoreAssignment(t *testing.T) {
	groups := &fakeGroupRepo{}
	resources := &fakeResourceRepo{choreFound: true}
	d := testDispatcher(t, groups, resources)

	choreID := int64(12)
	proposal := &domain.Proposal{
		ID:            2,
		GroupID:       5,
		Type:          domain.TypeChoreAssignment,
		LinkedChoreID: &choreID,
	}

	result, err := d.Dispatch(context.Background(), proposal, &domain.BallotOption{ID: 10})
	require.NoError(t, err)
	assert.Equal(t, true, result["chore_assignment_approved"])
	assert.Equal(t, []int64{12}, resources.approvedChores)
}

func TestDispatchKickUser(t *testing.T) {
	t.Run("removes user from option metadata", func(t *testing.T) {
		groups := &fakeGroupRepo{removeResult: true}
		d := testDispatcher(t, groups, &fakeResourceRepo{})

		proposal := &domain.Proposal{ID: 3, GroupID: 5, Type: domain.TypeKickUser}
		winner := &domain.BallotOption{
			ID:       10,
			Metadata: map[string]interface{}{"user_id": float64(42)},
		}

		result, err := d.Dispatch(context.Background(), proposal, winner)
		require.NoError(t, err)
		assert.Equal(t, int64(42), result["user_kicked"])
		assert.Equal(t, []int64{42}, groups.removed)
	})

	t.Run("missing metadata fails validation", func(t *testing.T) {
		groups := &fakeGroupRepo{removeResult: true}
		d := testDispatcher(t, groups, &fakeResourceRepo{})

		proposal := &domain.Proposal{ID: 3, GroupID: 5, Type: domain.TypeKickUser}
		winner := &domain.BallotOption{ID: 10, Metadata: map[string]interface{}{}}

		_, err := d.Dispatch(context.Background(), proposal, winner)
		require.Error(t, err)
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeMissingKickTarget, appErr.Code)
		assert.Empty(t, groups.removed)
	})

	t.Run("target already gone still succeeds", func(t *testing.T) {
		groups := &fakeGroupRepo{removeResult: false}
		d := testDispatcher(t, groups, &fakeResourceRepo{})

		proposal := &domain.Proposal{ID: 3, GroupID: 5, Type: domain.TypeKickUser}
		winner := &domain.BallotOption{
			ID:       10,
			Metadata: map[string]interface{}{"user_id": float64(42)},
		}

		result, err := d.Dispatch(context.Background(), proposal, winner)
		require.NoError(t, err)
		assert.Equal(t, int64(42), result["user_kicked"])
	})
}

func TestDispatchNoExecutorTypes(t *testing.T) {
	d := testDispatcher(t, &fakeGroupRepo{}, &fakeResourceRepo{})

	for _, typ := range []domain.ProposalType{
		domain.TypeGeneral,
		domain.TypePolicyChange,
		domain.TypePetAdoption,
	} {
		proposal := &domain.Proposal{ID: 4, GroupID: 5, Type: typ}
		result, err := d.Dispatch(context.Background(), proposal, &domain.BallotOption{ID: 10})
		require.NoError(t, err)
		assert.Empty(t, result)
	}
}

func TestKickTarget(t *testing.T) {
	tests := []struct {
		name   string
		winner *domain.BallotOption
		wantID int64
		wantOK bool
	}{
		{"float64 value", &domain.BallotOption{Metadata: map[string]interface{}{"user_id": float64(9)}}, 9, true},
		{"int value", &domain.BallotOption{Metadata: map[string]interface{}{"user_id": 9}}, 9, true},
		{"string value rejected", &domain.BallotOption{Metadata: map[string]interface{}{"user_id": "9"}}, 0, false},
		{"nil metadata", &domain.BallotOption{}, 0, false},
		{"nil winner", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := kickTarget(tt.winner)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
