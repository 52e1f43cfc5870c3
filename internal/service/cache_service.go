package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hearth/internal/domain"
	"hearth/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheService provides cache-aside reads for governance data. Cache
// failures degrade to the database and are never surfaced to callers.
type CacheService struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, logger *zap.Logger) *CacheService {
	return &CacheService{
		redis:  redisClient,
		logger: logger,
	}
}

// GetProposalWithCache retrieves a proposal with cache-aside pattern
func (c *CacheService) GetProposalWithCache(ctx context.Context, proposalID int64, dbFallback func(ctx context.Context, id int64) (*domain.Proposal, error)) (*domain.Proposal, error) {
	if c == nil || c.redis == nil {
		return dbFallback(ctx, proposalID)
	}
	cacheKey := c.redis.KeyBuilder.KeyProposal(proposalID)

	// Try cache first
	cachedData, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cachedData != "" {
		var proposal domain.Proposal
		if marshalErr := json.Unmarshal([]byte(cachedData), &proposal); marshalErr == nil {
			c.logger.Debug("Proposal cache hit", zap.Int64("proposal_id", proposalID))
			return &proposal, nil
		} else {
			c.logger.Warn("Proposal cache corrupted, falling back to database",
				zap.Int64("proposal_id", proposalID),
				zap.Error(marshalErr))
		}
	} else if err != nil && err != goredis.Nil {
		c.logger.Warn("Proposal cache error, falling back to database",
			zap.Int64("proposal_id", proposalID),
			zap.Error(err))
	}

	// Cache miss or error - get from database
	proposal, err := dbFallback(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("database fallback failed: %w", err)
	}

	// Cache the result asynchronously (fire and forget)
	if proposal != nil {
		go c.cacheProposalAsync(proposalID, proposal)
	}

	return proposal, nil
}

// InvalidateProposalCaches removes cached data touched by a proposal
// mutation: the detail entry and the group's list entry
func (c *CacheService) InvalidateProposalCaches(proposalID, groupID int64) {
	if c == nil || c.redis == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		keysToDelete := []string{
			c.redis.KeyBuilder.KeyProposal(proposalID),
			c.redis.KeyBuilder.KeyGroupProposals(groupID),
		}
		if err := c.redis.Delete(ctx, keysToDelete...); err != nil {
			c.logger.Error("Failed to invalidate proposal cache keys",
				zap.Strings("keys", keysToDelete),
				zap.Error(err))
		}

		// User vote entries are keyed per user, so clear them by pattern
		pattern := c.redis.KeyBuilder.KeyCustom("governance:proposal:%d:vote:*", proposalID)
		if err := c.redis.InvalidatePattern(ctx, pattern); err != nil {
			c.logger.Error("Failed to invalidate user vote caches", zap.Error(err))
		}
	}()
}

// InvalidateUserVoteCache removes a single user's cached vote status
func (c *CacheService) InvalidateUserVoteCache(ctx context.Context, proposalID, userID int64) error {
	if c == nil || c.redis == nil {
		return nil
	}
	cacheKey := c.redis.KeyBuilder.KeyUserVote(proposalID, userID)

	if err := c.redis.Delete(ctx, cacheKey); err != nil {
		c.logger.Error("Failed to invalidate user vote cache",
			zap.Int64("proposal_id", proposalID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return err
	}

	return nil
}

// TryDecisionLock takes a short SetNX lock so concurrent close/execute calls
// collapse to one winner; the loser surfaces a conflict. Without Redis the
// guarded status transition in storage is still the source of truth.
func (c *CacheService) TryDecisionLock(ctx context.Context, key string) (bool, error) {
	if c == nil || c.redis == nil {
		return true, nil
	}
	return c.redis.SetNX(ctx, key, "1", redis.TTLDecisionLock)
}

// TryCloseLock guards the close path for one proposal
func (c *CacheService) TryCloseLock(ctx context.Context, proposalID int64) (bool, error) {
	if c == nil || c.redis == nil {
		return true, nil
	}
	return c.TryDecisionLock(ctx, c.redis.KeyBuilder.KeyCloseLock(proposalID))
}

// TryExecuteLock guards the execute path for one proposal
func (c *CacheService) TryExecuteLock(ctx context.Context, proposalID int64) (bool, error) {
	if c == nil || c.redis == nil {
		return true, nil
	}
	return c.TryDecisionLock(ctx, c.redis.KeyBuilder.KeyExecuteLock(proposalID))
}

// HealthCheck performs a health check on the cache system
func (c *CacheService) HealthCheck(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	start := time.Now()
	err := c.redis.Health(ctx)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Cache health check failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}

	c.logger.Debug("Cache health check passed", zap.Duration("duration", duration))
	return nil
}

// cacheProposalAsync caches proposal data asynchronously
func (c *CacheService) cacheProposalAsync(proposalID int64, proposal *domain.Proposal) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cacheKey := c.redis.KeyBuilder.KeyProposal(proposalID)
	proposalData, err := json.Marshal(proposal)
	if err != nil {
		c.logger.Error("Failed to marshal proposal for caching",
			zap.Int64("proposal_id", proposalID),
			zap.Error(err))
		return
	}

	if err := c.redis.Set(ctx, cacheKey, string(proposalData), redis.TTLProposal); err != nil {
		c.logger.Error("Failed to cache proposal data",
			zap.Int64("proposal_id", proposalID),
			zap.Error(err))
	}
}
