package tally

import (
	"fmt"
	"sort"

	"hearth/internal/domain"
)

// Result is the outcome of tallying a closed proposal
type Result struct {
	WinnerOptionID *int64
	Status         domain.ProposalStatus
}

// Strategy tallies the vote ledger for one proposal. Implementations are
// pure: they work on an in-memory snapshot and never touch storage, so the
// cached per-option counters can drift without affecting outcomes.
type Strategy interface {
	Tally(options []domain.BallotOption, votes []domain.VoteRecord, groupSize int) Result
}

// ForStrategy returns the tallying algorithm for a voting strategy
func ForStrategy(s domain.VotingStrategy) (Strategy, error) {
	switch s {
	case domain.StrategySimpleMajority:
		return simpleMajority{}, nil
	case domain.StrategyUnanimous:
		return unanimous{}, nil
	case domain.StrategyRankedChoice:
		return rankedChoice{}, nil
	case domain.StrategyWeighted:
		return weighted{}, nil
	default:
		return nil, fmt.Errorf("unknown voting strategy: %s", s)
	}
}

// QuorumMet evaluates the participation threshold before any tally runs.
// A nil minimum always meets quorum; otherwise the required count is the
// integer truncation of groupSize * pct / 100.
func QuorumMet(minQuorumPercentage *int, groupSize, distinctVoters int) (bool, int) {
	if minQuorumPercentage == nil {
		return true, 0
	}
	required := groupSize * *minQuorumPercentage / 100
	return distinctVoters >= required, required
}

func rejected() Result {
	return Result{Status: domain.ProposalRejected}
}

func passed(winnerID int64) Result {
	return Result{WinnerOptionID: &winnerID, Status: domain.ProposalPassed}
}

// sumWeights recomputes per-option weight totals from the ledger
func sumWeights(votes []domain.VoteRecord) (map[int64]int, int) {
	perOption := make(map[int64]int)
	total := 0
	for _, v := range votes {
		perOption[v.BallotOptionID] += v.Weight
		total += v.Weight
	}
	return perOption, total
}

// topOption returns the option with the greatest total, preferring the lower
// option ID between equals so the result is deterministic
func topOption(perOption map[int64]int) (int64, int) {
	var topID int64
	topWeight := -1
	ids := make([]int64, 0, len(perOption))
	for id := range perOption {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if perOption[id] > topWeight {
			topID, topWeight = id, perOption[id]
		}
	}
	return topID, topWeight
}

// simpleMajority passes when the leading option holds a strict majority of
// all cast weight. A tie cannot hold a strict majority, so it rejects.
type simpleMajority struct{}

func (simpleMajority) Tally(options []domain.BallotOption, votes []domain.VoteRecord, groupSize int) Result {
	perOption, total := sumWeights(votes)
	if total == 0 {
		return rejected()
	}

	winnerID, winnerWeight := topOption(perOption)
	if float64(winnerWeight) > float64(total)/2 {
		return passed(winnerID)
	}
	return rejected()
}

// unanimous passes only when every cast weight landed on a single option
type unanimous struct{}

func (unanimous) Tally(options []domain.BallotOption, votes []domain.VoteRecord, groupSize int) Result {
	perOption, total := sumWeights(votes)
	if total == 0 {
		return rejected()
	}

	if len(perOption) != 1 {
		return rejected()
	}
	winnerID, _ := topOption(perOption)
	return passed(winnerID)
}

// weighted passes when the top option's summed weight exceeds half of the
// total summed weight across all options
type weighted struct{}

func (weighted) Tally(options []domain.BallotOption, votes []domain.VoteRecord, groupSize int) Result {
	perOption, total := sumWeights(votes)
	if total == 0 {
		return rejected()
	}

	winnerID, winnerWeight := topOption(perOption)
	if float64(winnerWeight) > float64(total)/2 {
		return passed(winnerID)
	}
	return rejected()
}

// rankedChoice runs instant-runoff elimination rounds. Each round counts
// every voter's highest-ranked surviving option; an option holding a strict
// majority of that round's ballots wins. Otherwise the option with the
// fewest counts is eliminated (lowest option ID between tied minima) and
// the round repeats. A sole survivor wins unconditionally.
type rankedChoice struct{}

func (rankedChoice) Tally(options []domain.BallotOption, votes []domain.VoteRecord, groupSize int) Result {
	if len(votes) == 0 {
		return rejected()
	}

	// Preference lists per voter, in rank order
	ballots := make(map[int64][]domain.VoteRecord)
	for _, v := range votes {
		ballots[v.UserID] = append(ballots[v.UserID], v)
	}
	for userID := range ballots {
		prefs := ballots[userID]
		sort.SliceStable(prefs, func(i, j int) bool {
			return rankOf(prefs[i]) < rankOf(prefs[j])
		})
		ballots[userID] = prefs
	}

	remaining := make(map[int64]bool, len(options))
	for _, opt := range options {
		remaining[opt.ID] = true
	}

	for len(remaining) > 1 {
		counts := make(map[int64]int)
		counted := 0
		for _, prefs := range ballots {
			for _, vote := range prefs {
				if remaining[vote.BallotOptionID] {
					counts[vote.BallotOptionID]++
					counted++
					break
				}
			}
		}

		if counted == 0 {
			return rejected()
		}

		for optionID, count := range counts {
			if float64(count) > float64(counted)/2 {
				return passed(optionID)
			}
		}

		eliminate := lowestCount(remaining, counts)
		delete(remaining, eliminate)
	}

	for optionID := range remaining {
		return passed(optionID)
	}
	return rejected()
}

func rankOf(v domain.VoteRecord) int {
	if v.RankOrder == nil {
		return 1 << 30
	}
	return *v.RankOrder
}

// lowestCount picks the surviving option with the fewest counts this round.
// Options with zero counts eliminate first; ties break on the lower ID.
func lowestCount(remaining map[int64]bool, counts map[int64]int) int64 {
	ids := make([]int64, 0, len(remaining))
	for id := range remaining {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lowest := ids[0]
	for _, id := range ids[1:] {
		if counts[id] < counts[lowest] {
			lowest = id
		}
	}
	return lowest
}
