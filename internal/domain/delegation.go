package domain

import (
	"time"
)

// DelegationTopic scopes a delegation to a category of proposals
type DelegationTopic string

const (
	TopicAll     DelegationTopic = "ALL"
	TopicFinance DelegationTopic = "FINANCE"
	TopicChores  DelegationTopic = "CHORES"
	TopicPets    DelegationTopic = "PETS"
)

// ValidDelegationTopic reports whether t is a known delegation topic
func ValidDelegationTopic(t DelegationTopic) bool {
	switch t {
	case TopicAll, TopicFinance, TopicChores, TopicPets:
		return true
	}
	return false
}

// VoteDelegation is a stored proxy-voting record. Delegations are recorded
// for display and audit; the tally engine never expands them.
type VoteDelegation struct {
	ID            int64           `json:"id"`
	GroupID       int64           `json:"group_id"`
	DelegatorID   int64           `json:"delegator_id"`
	DelegateID    int64           `json:"delegate_id"`
	TopicCategory DelegationTopic `json:"topic_category"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CreateDelegationRequest is the payload for recording a delegation
type CreateDelegationRequest struct {
	GroupID       int64           `json:"group_id"`
	DelegateID    int64           `json:"delegate_id"`
	TopicCategory DelegationTopic `json:"topic_category"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
}
