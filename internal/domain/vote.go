package domain

import (
	"time"
)

// VoteRecord represents one vote cast by a user on a proposal. For ranked
// choice proposals a user owns one record per rank; otherwise at most one
// record per (proposal, user).
type VoteRecord struct {
	ID             int64     `json:"id"`
	ProposalID     int64     `json:"proposal_id"`
	UserID         int64     `json:"user_id"`
	BallotOptionID int64     `json:"ballot_option_id"`
	RankOrder      *int      `json:"rank_order,omitempty"`
	Weight         int       `json:"weight"`
	IsAnonymous    bool      `json:"is_anonymous"`
	VotedAt        time.Time `json:"voted_at"`
}

// CastVoteRequest is the payload for a single (non-ranked) vote
type CastVoteRequest struct {
	BallotOptionID int64 `json:"ballot_option_id"`
	Weight         int   `json:"weight,omitempty"`
	IsAnonymous    bool  `json:"is_anonymous,omitempty"`
}

// RankedChoice pairs a ballot option with its preference rank (1 = highest)
type RankedChoice struct {
	BallotOptionID int64 `json:"ballot_option_id"`
	Rank           int   `json:"rank"`
}

// CastRankedVotesRequest is the payload for a full ranked ballot. The whole
// set replaces any prior votes by the same user.
type CastRankedVotesRequest struct {
	Choices     []RankedChoice `json:"choices"`
	IsAnonymous bool           `json:"is_anonymous,omitempty"`
}
