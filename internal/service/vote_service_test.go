package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/domain"
	"hearth/pkg/errors"
)

func rankedCreateRequest() *domain.CreateProposalRequest {
	return &domain.CreateProposalRequest{
		Title:    "Pick a vacation spot",
		Type:     domain.TypeGeneral,
		Strategy: domain.StrategyRankedChoice,
		BallotOptions: []domain.BallotOptionInput{
			{Text: "Beach"},
			{Text: "Mountains"},
			{Text: "City"},
		},
	}
}

func TestCastVote(t *testing.T) {
	ctx := context.Background()

	t.Run("records a vote with default weight", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, simpleCreateRequest())
		yes := proposal.BallotOptions[0].ID

		vote, err := env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: yes})
		require.NoError(t, err)
		assert.Equal(t, yes, vote.BallotOptionID)
		assert.Equal(t, 1, vote.Weight)
		assert.Nil(t, vote.RankOrder)
	})

	t.Run("revote replaces the prior vote", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, simpleCreateRequest())
		yes, no := proposal.BallotOptions[0].ID, proposal.BallotOptions[1].ID

		_, err := env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: yes})
		require.NoError(t, err)
		_, err = env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: no})
		require.NoError(t, err)

		current, err := env.votes.GetUserVote(ctx, proposal.ID, 2)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, no, current.BallotOptionID)

		voters, err := env.voteLedger.CountDistinctVoters(ctx, proposal.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, voters)
	})

	t.Run("weighted proposals accept explicit weights", func(t *testing.T) {
		env := newTestEnv(t)
		req := simpleCreateRequest()
		req.Strategy = domain.StrategyWeighted
		proposal := env.openProposal(t, req)
		yes := proposal.BallotOptions[0].ID

		vote, err := env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: yes, Weight: 5})
		require.NoError(t, err)
		assert.Equal(t, 5, vote.Weight)
	})

	t.Run("rejects non-positive weight", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, simpleCreateRequest())
		yes := proposal.BallotOptions[0].ID

		_, err := env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: yes, Weight: -1})
		assertAppError(t, err, errors.CodeInvalidWeight, 400)
	})

	t.Run("draft proposals are not votable", func(t *testing.T) {
		env := newTestEnv(t)
		created, err := env.proposals.Create(ctx, 1, 1, simpleCreateRequest())
		require.NoError(t, err)

		_, err = env.votes.CastVote(ctx, created.ID, 2, &domain.CastVoteRequest{BallotOptionID: created.BallotOptions[0].ID})
		assertAppError(t, err, errors.CodeProposalNotOpen, 409)
	})

	t.Run("deadline in the past rejects the vote", func(t *testing.T) {
		env := newTestEnv(t)
		req := simpleCreateRequest()
		past := time.Now().Add(-time.Hour)
		req.DeadlineAt = &past
		proposal := env.openProposal(t, req)

		_, err := env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: proposal.BallotOptions[0].ID})
		assertAppError(t, err, errors.CodeProposalExpired, 409)
	})

	t.Run("single votes are rejected on ranked choice proposals", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, rankedCreateRequest())
		opts := proposal.BallotOptions

		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, &domain.CastRankedVotesRequest{
			Choices: []domain.RankedChoice{
				{BallotOptionID: opts[0].ID, Rank: 1},
				{BallotOptionID: opts[1].ID, Rank: 2},
			},
		})
		require.NoError(t, err)

		// A plain vote after a ranked ballot must not mix into the ranked set
		_, err = env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: opts[1].ID})
		assertAppError(t, err, errors.CodeInvalidStrategy, 400)

		records, err := env.voteLedger.ListByProposal(ctx, proposal.ID)
		require.NoError(t, err)
		assert.Len(t, records, 2)
		for _, record := range records {
			assert.NotNil(t, record.RankOrder)
		}
	})

	t.Run("concurrent votes from one user leave a single record", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, simpleCreateRequest())
		yes, no := proposal.BallotOptions[0].ID, proposal.BallotOptions[1].ID

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			option := yes
			if i%2 == 1 {
				option = no
			}
			wg.Add(1)
			go func(optionID int64) {
				defer wg.Done()
				_, err := env.votes.CastVote(ctx, proposal.ID, 2, &domain.CastVoteRequest{BallotOptionID: optionID})
				assert.NoError(t, err)
			}(option)
		}
		wg.Wait()

		records, err := env.voteLedger.ListByProposal(ctx, proposal.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)

		voters, err := env.voteLedger.CountDistinctVoters(ctx, proposal.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, voters)
	})

	t.Run("option from another proposal is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.openProposal(t, simpleCreateRequest())
		second := env.openProposal(t, simpleCreateRequest())

		_, err := env.votes.CastVote(ctx, second.ID, 2, &domain.CastVoteRequest{BallotOptionID: first.BallotOptions[0].ID})
		assertAppError(t, err, errors.CodeBallotOptionNotFound, 404)
	})

	t.Run("outsiders cannot vote", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, simpleCreateRequest())

		_, err := env.votes.CastVote(ctx, proposal.ID, 99, &domain.CastVoteRequest{BallotOptionID: proposal.BallotOptions[0].ID})
		assertAppError(t, err, errors.CodeNotMember, 403)
	})
}

func TestCastRankedVotes(t *testing.T) {
	ctx := context.Background()

	t.Run("records a full ranked ballot", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, rankedCreateRequest())
		opts := proposal.BallotOptions

		votes, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, &domain.CastRankedVotesRequest{
			Choices: []domain.RankedChoice{
				{BallotOptionID: opts[2].ID, Rank: 1},
				{BallotOptionID: opts[0].ID, Rank: 2},
				{BallotOptionID: opts[1].ID, Rank: 3},
			},
		})
		require.NoError(t, err)
		require.Len(t, votes, 3)

		// GetUserVote surfaces the first preference
		top, err := env.votes.GetUserVote(ctx, proposal.ID, 2)
		require.NoError(t, err)
		require.NotNil(t, top)
		assert.Equal(t, opts[2].ID, top.BallotOptionID)
		require.NotNil(t, top.RankOrder)
		assert.Equal(t, 1, *top.RankOrder)
	})

	t.Run("resubmission replaces the prior ballot", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, rankedCreateRequest())
		opts := proposal.BallotOptions

		first := &domain.CastRankedVotesRequest{Choices: []domain.RankedChoice{
			{BallotOptionID: opts[0].ID, Rank: 1},
			{BallotOptionID: opts[1].ID, Rank: 2},
		}}
		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, first)
		require.NoError(t, err)

		second := &domain.CastRankedVotesRequest{Choices: []domain.RankedChoice{
			{BallotOptionID: opts[1].ID, Rank: 1},
		}}
		_, err = env.votes.CastRankedVotes(ctx, proposal.ID, 2, second)
		require.NoError(t, err)

		records, err := env.voteLedger.ListByProposal(ctx, proposal.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, opts[1].ID, records[0].BallotOptionID)
	})

	t.Run("rejects ranked ballots on other strategies", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, simpleCreateRequest())

		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, &domain.CastRankedVotesRequest{
			Choices: []domain.RankedChoice{{BallotOptionID: proposal.BallotOptions[0].ID, Rank: 1}},
		})
		assertAppError(t, err, errors.CodeInvalidStrategy, 400)
	})

	t.Run("rejects empty ballots", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, rankedCreateRequest())

		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, &domain.CastRankedVotesRequest{})
		assertAppError(t, err, errors.CodeInvalidRanking, 400)
	})

	t.Run("rejects duplicate ranks", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, rankedCreateRequest())
		opts := proposal.BallotOptions

		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, &domain.CastRankedVotesRequest{
			Choices: []domain.RankedChoice{
				{BallotOptionID: opts[0].ID, Rank: 1},
				{BallotOptionID: opts[1].ID, Rank: 1},
			},
		})
		assertAppError(t, err, errors.CodeInvalidRanking, 400)
	})

	t.Run("rejects the same option ranked twice", func(t *testing.T) {
		env := newTestEnv(t)
		proposal := env.openProposal(t, rankedCreateRequest())
		opts := proposal.BallotOptions

		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, 2, &domain.CastRankedVotesRequest{
			Choices: []domain.RankedChoice{
				{BallotOptionID: opts[0].ID, Rank: 1},
				{BallotOptionID: opts[0].ID, Rank: 2},
			},
		})
		assertAppError(t, err, errors.CodeInvalidRanking, 400)
	})

	t.Run("rejects options outside the proposal", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.openProposal(t, rankedCreateRequest())
		second := env.openProposal(t, rankedCreateRequest())

		_, err := env.votes.CastRankedVotes(ctx, second.ID, 2, &domain.CastRankedVotesRequest{
			Choices: []domain.RankedChoice{{BallotOptionID: first.BallotOptions[0].ID, Rank: 1}},
		})
		assertAppError(t, err, errors.CodeBallotOptionNotFound, 404)
	})
}

func TestRankedChoiceEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	proposal := env.openProposal(t, rankedCreateRequest())
	beach, mountains, city := proposal.BallotOptions[0].ID, proposal.BallotOptions[1].ID, proposal.BallotOptions[2].ID

	ballots := map[int64][]domain.RankedChoice{
		1: {{BallotOptionID: beach, Rank: 1}, {BallotOptionID: mountains, Rank: 2}},
		2: {{BallotOptionID: beach, Rank: 1}, {BallotOptionID: city, Rank: 2}},
		3: {{BallotOptionID: mountains, Rank: 1}, {BallotOptionID: beach, Rank: 2}},
		4: {{BallotOptionID: city, Rank: 1}, {BallotOptionID: mountains, Rank: 2}},
	}
	for userID, choices := range ballots {
		_, err := env.votes.CastRankedVotes(ctx, proposal.ID, userID, &domain.CastRankedVotesRequest{Choices: choices})
		require.NoError(t, err)
	}

	// First round beach 2, mountains 1, city 1: no majority. Mountains is
	// eliminated on the lowest-ID tie-break and its ballot transfers to
	// beach, which reaches 3 of 4
	closed, err := env.proposals.Close(ctx, proposal.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalPassed, closed.Status)
	assert.Equal(t, float64(beach), closed.ExecutionResult["winner_option_id"])
	assert.Equal(t, "Beach", closed.ExecutionResult["winner_option_text"])
}

func TestGetUserVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	proposal := env.openProposal(t, simpleCreateRequest())

	t.Run("nil before voting", func(t *testing.T) {
		vote, err := env.votes.GetUserVote(ctx, proposal.ID, 2)
		require.NoError(t, err)
		assert.Nil(t, vote)
	})

	t.Run("outsiders are rejected", func(t *testing.T) {
		_, err := env.votes.GetUserVote(ctx, proposal.ID, 99)
		assertAppError(t, err, errors.CodeNotMember, 403)
	})

	t.Run("unknown proposal is not found", func(t *testing.T) {
		_, err := env.votes.GetUserVote(ctx, 9999, 2)
		assertAppError(t, err, errors.CodeProposalNotFound, 404)
	})
}
