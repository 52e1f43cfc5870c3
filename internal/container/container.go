package container

import (
	"context"

	"hearth/internal/config"
	"hearth/internal/repository"
	"hearth/internal/service"
	"hearth/internal/service/execution"
	"hearth/pkg/database"
	"hearth/pkg/logger"
	"hearth/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.PostgresDB
	RedisClient  *redis.Client
	Repositories *repository.Repositories
	Services     *service.Services
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	// Initialize database connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Initialize Redis client if Redis URL is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching")
	}

	// Initialize repositories
	repos := &repository.Repositories{
		Proposal:   repository.NewProposalRepository(db),
		Vote:       repository.NewVoteRepository(db),
		Group:      repository.NewGroupRepository(db),
		Resource:   repository.NewResourceRepository(db),
		Delegation: repository.NewDelegationRepository(db),
	}

	// Initialize services
	cacheService := service.NewCacheService(redisClient, logger.Logger)
	dispatcher := execution.NewDispatcher(repos.Group, repos.Resource, logger)

	services := &service.Services{
		Proposal:   service.NewProposalService(repos, dispatcher, cacheService, logger),
		Vote:       service.NewVoteService(repos, cacheService, logger),
		Delegation: service.NewDelegationService(repos, logger),
	}

	return &Container{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		RedisClient:  redisClient,
		Repositories: repos,
		Services:     services,
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// GetCacheService returns a cache service instance (returns nil if Redis is not available)
func (c *Container) GetCacheService() *service.CacheService {
	if c.RedisClient == nil {
		return nil
	}
	return service.NewCacheService(c.RedisClient, c.Logger.Logger)
}
