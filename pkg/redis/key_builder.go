package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	// Set key prefix based on environment
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Governance key builders
func (kb *KeyBuilder) KeyProposal(proposalID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyProposal, proposalID))
}

func (kb *KeyBuilder) KeyGroupProposals(groupID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyGroupProposals, groupID))
}

func (kb *KeyBuilder) KeyUserVote(proposalID, userID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserVote, proposalID, userID))
}

func (kb *KeyBuilder) KeyCloseLock(proposalID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyCloseLock, proposalID))
}

func (kb *KeyBuilder) KeyExecuteLock(proposalID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyExecuteLock, proposalID))
}

// Generic key builders for custom patterns
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	key := fmt.Sprintf(pattern, args...)
	return kb.BuildKey(key)
}
