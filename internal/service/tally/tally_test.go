package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/domain"
)

func options(ids ...int64) []domain.BallotOption {
	opts := make([]domain.BallotOption, 0, len(ids))
	for i, id := range ids {
		opts = append(opts, domain.BallotOption{ID: id, DisplayOrder: i})
	}
	return opts
}

func vote(userID, optionID int64, weight int) domain.VoteRecord {
	return domain.VoteRecord{UserID: userID, BallotOptionID: optionID, Weight: weight}
}

func rankedVote(userID, optionID int64, rank int) domain.VoteRecord {
	return domain.VoteRecord{UserID: userID, BallotOptionID: optionID, RankOrder: &rank, Weight: 1}
}

func TestForStrategy(t *testing.T) {
	for _, s := range []domain.VotingStrategy{
		domain.StrategySimpleMajority,
		domain.StrategyUnanimous,
		domain.StrategyRankedChoice,
		domain.StrategyWeighted,
	} {
		strategy, err := ForStrategy(s)
		require.NoError(t, err)
		assert.NotNil(t, strategy)
	}

	_, err := ForStrategy("APPROVAL")
	assert.Error(t, err)
}

func TestSimpleMajority(t *testing.T) {
	strategy, err := ForStrategy(domain.StrategySimpleMajority)
	require.NoError(t, err)

	tests := []struct {
		name       string
		votes      []domain.VoteRecord
		wantStatus domain.ProposalStatus
		wantWinner *int64
	}{
		{
			name: "strict majority passes",
			votes: []domain.VoteRecord{
				vote(1, 10, 1), vote(2, 10, 1), vote(3, 10, 1),
				vote(4, 20, 1), vote(5, 20, 1),
			},
			wantStatus: domain.ProposalPassed,
			wantWinner: ptr(int64(10)),
		},
		{
			name: "tie rejects",
			votes: []domain.VoteRecord{
				vote(1, 10, 1), vote(2, 10, 1),
				vote(3, 20, 1), vote(4, 20, 1),
			},
			wantStatus: domain.ProposalRejected,
		},
		{
			name: "exact half rejects",
			votes: []domain.VoteRecord{
				vote(1, 10, 1), vote(2, 10, 1),
				vote(3, 20, 1), vote(4, 30, 1),
			},
			wantStatus: domain.ProposalRejected,
		},
		{
			name:       "no votes rejects",
			votes:      nil,
			wantStatus: domain.ProposalRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Tally(options(10, 20, 30), tt.votes, 5)
			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantWinner != nil {
				require.NotNil(t, result.WinnerOptionID)
				assert.Equal(t, *tt.wantWinner, *result.WinnerOptionID)
			} else {
				assert.Nil(t, result.WinnerOptionID)
			}
		})
	}
}

func TestUnanimous(t *testing.T) {
	strategy, err := ForStrategy(domain.StrategyUnanimous)
	require.NoError(t, err)

	t.Run("all votes on one option passes", func(t *testing.T) {
		votes := []domain.VoteRecord{
			vote(1, 10, 1), vote(2, 10, 1), vote(3, 10, 1), vote(4, 10, 1),
		}
		result := strategy.Tally(options(10, 20), votes, 4)
		assert.Equal(t, domain.ProposalPassed, result.Status)
		require.NotNil(t, result.WinnerOptionID)
		assert.Equal(t, int64(10), *result.WinnerOptionID)
	})

	t.Run("single dissent rejects", func(t *testing.T) {
		votes := []domain.VoteRecord{
			vote(1, 10, 1), vote(2, 10, 1), vote(3, 10, 1), vote(4, 20, 1),
		}
		result := strategy.Tally(options(10, 20), votes, 4)
		assert.Equal(t, domain.ProposalRejected, result.Status)
		assert.Nil(t, result.WinnerOptionID)
	})

	t.Run("no votes rejects", func(t *testing.T) {
		result := strategy.Tally(options(10, 20), nil, 4)
		assert.Equal(t, domain.ProposalRejected, result.Status)
	})
}

func TestWeighted(t *testing.T) {
	strategy, err := ForStrategy(domain.StrategyWeighted)
	require.NoError(t, err)

	t.Run("weight outvotes headcount", func(t *testing.T) {
		votes := []domain.VoteRecord{
			vote(1, 10, 5),
			vote(2, 20, 1), vote(3, 20, 1), vote(4, 20, 1),
		}
		result := strategy.Tally(options(10, 20), votes, 4)
		assert.Equal(t, domain.ProposalPassed, result.Status)
		require.NotNil(t, result.WinnerOptionID)
		assert.Equal(t, int64(10), *result.WinnerOptionID)
	})

	t.Run("weight tie rejects", func(t *testing.T) {
		votes := []domain.VoteRecord{
			vote(1, 10, 3),
			vote(2, 20, 1), vote(3, 20, 2),
		}
		result := strategy.Tally(options(10, 20), votes, 3)
		assert.Equal(t, domain.ProposalRejected, result.Status)
	})
}

func TestRankedChoice(t *testing.T) {
	strategy, err := ForStrategy(domain.StrategyRankedChoice)
	require.NoError(t, err)

	t.Run("winner emerges after elimination", func(t *testing.T) {
		// A=1 B=2 C=3. First preferences A:2 B:2 C:1, so C eliminates and
		// its ballot transfers to A for a 3/5 majority.
		votes := []domain.VoteRecord{
			rankedVote(1, 1, 1), rankedVote(1, 2, 2), rankedVote(1, 3, 3),
			rankedVote(2, 1, 1), rankedVote(2, 2, 2), rankedVote(2, 3, 3),
			rankedVote(3, 2, 1), rankedVote(3, 3, 2), rankedVote(3, 1, 3),
			rankedVote(4, 2, 1), rankedVote(4, 3, 2), rankedVote(4, 1, 3),
			rankedVote(5, 3, 1), rankedVote(5, 1, 2), rankedVote(5, 2, 3),
		}
		result := strategy.Tally(options(1, 2, 3), votes, 5)
		assert.Equal(t, domain.ProposalPassed, result.Status)
		require.NotNil(t, result.WinnerOptionID)
		assert.Equal(t, int64(1), *result.WinnerOptionID)
	})

	t.Run("first round majority wins immediately", func(t *testing.T) {
		votes := []domain.VoteRecord{
			rankedVote(1, 2, 1),
			rankedVote(2, 2, 1),
			rankedVote(3, 2, 1),
			rankedVote(4, 1, 1),
		}
		result := strategy.Tally(options(1, 2, 3), votes, 4)
		assert.Equal(t, domain.ProposalPassed, result.Status)
		require.NotNil(t, result.WinnerOptionID)
		assert.Equal(t, int64(2), *result.WinnerOptionID)
	})

	t.Run("partial rankings exhaust", func(t *testing.T) {
		// Both voters rank only their favorite. After the 1-1 tie the lower
		// ID eliminates and the survivor wins.
		votes := []domain.VoteRecord{
			rankedVote(1, 1, 1),
			rankedVote(2, 2, 1),
		}
		result := strategy.Tally(options(1, 2), votes, 2)
		assert.Equal(t, domain.ProposalPassed, result.Status)
		require.NotNil(t, result.WinnerOptionID)
		assert.Equal(t, int64(2), *result.WinnerOptionID)
	})

	t.Run("no votes rejects", func(t *testing.T) {
		result := strategy.Tally(options(1, 2, 3), nil, 3)
		assert.Equal(t, domain.ProposalRejected, result.Status)
	})
}

func TestQuorumMet(t *testing.T) {
	tests := []struct {
		name         string
		pct          *int
		groupSize    int
		voters       int
		wantMet      bool
		wantRequired int
	}{
		{"nil quorum always met", nil, 10, 0, true, 0},
		{"below threshold", ptr(50), 10, 4, false, 5},
		{"at threshold", ptr(50), 10, 5, true, 5},
		{"truncates fractional requirement", ptr(50), 5, 2, true, 2},
		{"full participation required", ptr(100), 3, 2, false, 3},
		{"zero percent always met", ptr(0), 10, 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, required := QuorumMet(tt.pct, tt.groupSize, tt.voters)
			assert.Equal(t, tt.wantMet, met)
			assert.Equal(t, tt.wantRequired, required)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
