package domain

import (
	"time"
)

// ProposalStatus represents the lifecycle state of a proposal
type ProposalStatus string

const (
	ProposalDraft     ProposalStatus = "DRAFT"
	ProposalOpen      ProposalStatus = "OPEN"
	ProposalPassed    ProposalStatus = "PASSED"
	ProposalRejected  ProposalStatus = "REJECTED"
	ProposalExecuted  ProposalStatus = "EXECUTED"
	ProposalCancelled ProposalStatus = "CANCELLED"
)

// ProposalType determines which execution effect applies when a proposal passes
type ProposalType string

const (
	TypeGeneral         ProposalType = "GENERAL"
	TypeExpenseRequest  ProposalType = "EXPENSE_REQUEST"
	TypePolicyChange    ProposalType = "POLICY_CHANGE"
	TypeKickUser        ProposalType = "KICK_USER"
	TypeChoreAssignment ProposalType = "CHORE_ASSIGNMENT"
	TypePetAdoption     ProposalType = "PET_ADOPTION"
)

// VotingStrategy selects the tallying algorithm used at close time
type VotingStrategy string

const (
	StrategySimpleMajority VotingStrategy = "SIMPLE_MAJORITY"
	StrategyUnanimous      VotingStrategy = "UNANIMOUS"
	StrategyRankedChoice   VotingStrategy = "RANKED_CHOICE"
	StrategyWeighted       VotingStrategy = "WEIGHTED"
)

// ValidProposalType reports whether t is a known proposal type
func ValidProposalType(t ProposalType) bool {
	switch t {
	case TypeGeneral, TypeExpenseRequest, TypePolicyChange, TypeKickUser, TypeChoreAssignment, TypePetAdoption:
		return true
	}
	return false
}

// ValidVotingStrategy reports whether s is a known voting strategy
func ValidVotingStrategy(s VotingStrategy) bool {
	switch s {
	case StrategySimpleMajority, StrategyUnanimous, StrategyRankedChoice, StrategyWeighted:
		return true
	}
	return false
}

// ExecutionResult is the schemaless result map persisted on a proposal.
// Close writes the tally summary; execute merges type-specific keys into it.
type ExecutionResult map[string]interface{}

// Proposal represents a decision item a group votes on
type Proposal struct {
	ID                  int64           `json:"id"`
	GroupID             int64           `json:"group_id"`
	CreatedByID         int64           `json:"created_by_id"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	Type                ProposalType    `json:"type"`
	Strategy            VotingStrategy  `json:"strategy"`
	Status              ProposalStatus  `json:"status"`
	DeadlineAt          *time.Time      `json:"deadline_at,omitempty"`
	MinQuorumPercentage *int            `json:"min_quorum_percentage,omitempty"`
	LinkedExpenseID     *int64          `json:"linked_expense_id,omitempty"`
	LinkedChoreID       *int64          `json:"linked_chore_id,omitempty"`
	LinkedPetID         *int64          `json:"linked_pet_id,omitempty"`
	ExecutionResult     ExecutionResult `json:"execution_result,omitempty"`
	ExecutedAt          *time.Time      `json:"executed_at,omitempty"`
	BallotOptions       []BallotOption  `json:"ballot_options,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// BallotOption represents one selectable choice on a proposal.
// Options are created atomically with the proposal and immutable once the
// proposal leaves DRAFT. VoteCount is a denormalized read cache; under
// RANKED_CHOICE it caches first-preference counts only.
type BallotOption struct {
	ID           int64                  `json:"id"`
	ProposalID   int64                  `json:"proposal_id"`
	Text         string                 `json:"text"`
	DisplayOrder int                    `json:"display_order"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	VoteCount    int                    `json:"vote_count"`
	CreatedAt    time.Time              `json:"created_at"`
}

// OptionResult is one ballot option's share of the vote in a results summary
type OptionResult struct {
	OptionID   int64   `json:"option_id"`
	OptionText string  `json:"option_text"`
	VoteCount  int     `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}

// ProposalResults summarizes a proposal's standing for the results endpoint.
// Winner fields are only populated once the proposal has been closed.
type ProposalResults struct {
	ProposalID       int64          `json:"proposal_id"`
	Status           ProposalStatus `json:"status"`
	TotalVotes       int            `json:"total_votes"`
	QuorumReached    bool           `json:"quorum_reached"`
	RequiredQuorum   *int           `json:"required_quorum,omitempty"`
	Results          []OptionResult `json:"results"`
	WinnerOptionID   *int64         `json:"winner_option_id,omitempty"`
	WinnerOptionText *string        `json:"winner_option_text,omitempty"`
}

// BallotOptionInput is one option supplied at proposal creation
type BallotOptionInput struct {
	Text         string                 `json:"text"`
	DisplayOrder *int                   `json:"display_order,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// CreateProposalRequest is the payload for creating a proposal
type CreateProposalRequest struct {
	GroupID             int64               `json:"group_id"`
	Title               string              `json:"title"`
	Description         string              `json:"description,omitempty"`
	Type                ProposalType        `json:"type"`
	Strategy            VotingStrategy      `json:"strategy"`
	DeadlineAt          *time.Time          `json:"deadline_at,omitempty"`
	MinQuorumPercentage *int                `json:"min_quorum_percentage,omitempty"`
	BallotOptions       []BallotOptionInput `json:"ballot_options"`
	LinkedExpenseID     *int64              `json:"linked_expense_id,omitempty"`
	LinkedChoreID       *int64              `json:"linked_chore_id,omitempty"`
	LinkedPetID         *int64              `json:"linked_pet_id,omitempty"`
}

// UpdateProposalRequest is the payload for updating a DRAFT proposal.
// Nil fields are left unchanged.
type UpdateProposalRequest struct {
	Title               *string    `json:"title,omitempty"`
	Description         *string    `json:"description,omitempty"`
	DeadlineAt          *time.Time `json:"deadline_at,omitempty"`
	MinQuorumPercentage *int       `json:"min_quorum_percentage,omitempty"`
}

// ProposalFilter narrows proposal listings
type ProposalFilter struct {
	Status *ProposalStatus
	Limit  int
	Offset int
}
