package container

import (
	"context"
	"fmt"

	"schedpoll/internal/config"
	"schedpoll/internal/repository"
	"schedpoll/internal/service"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/database"
	"schedpoll/pkg/logger"
	"schedpoll/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	Postgres    *database.PostgresDB
	SQLite      *database.SQLiteDB
	RedisClient *redis.Client
	Repository  repository.PollRepository
	Tokens      ott.Store
	Credentials *service.CredentialService
	Services    *service.Services
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}

	// Initialize Redis client if Redis URL is configured
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, keeping one-time tokens in memory")
		} else {
			c.RedisClient = client
			logger.WithField("key_prefix", client.KeyBuilder.GetPrefix()).Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, keeping one-time tokens in memory")
	}

	c.Credentials = service.NewCredentialService(cfg.AppSecret)
	if c.RedisClient != nil {
		c.Tokens = ott.NewRedisStore(c.RedisClient, c.Credentials.NewOneTimeToken, cfg.OTTTTL)
	} else {
		c.Tokens = ott.NewMemoryStore(c.Credentials.NewOneTimeToken, cfg.OTTTTL)
	}

	pollLog := logger.Component("polls")
	aggregator := service.NewAggregator(c.Repository, c.Tokens, c.Credentials, pollLog)
	c.Services = &service.Services{
		Polls: service.NewPollService(c.Repository, c.Tokens, c.Credentials, aggregator, pollLog),
		Auth:  service.NewAuthorizer(c.Repository, c.Tokens, c.Credentials, logger.Component("auth")),
		Expiry: service.NewExpiryService(c.Repository, c.Tokens, logger.Component("expiry"), service.ExpiryConfig{
			OTTSweepInterval:  cfg.OTTSweepInterval,
			PollSweepInterval: cfg.PollSweepInterval,
			PollRetention:     cfg.PollRetention,
		}),
	}

	return c, nil
}

func (c *Container) initStorage(ctx context.Context) error {
	switch c.Config.DatabaseDriver {
	case config.DriverPostgres:
		opts := database.DefaultPostgresOptions()
		if c.Config.DBMaxConns > 0 {
			opts.MaxConns = int32(c.Config.DBMaxConns)
		}
		db, err := database.NewPostgresDB(ctx, c.Config.DatabaseURL, opts)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		c.Postgres = db
		c.Repository = repository.NewPollRepository(db)
		c.Logger.Info("Using postgres poll store")
	case config.DriverSQLite, "":
		db, err := database.OpenSQLite(ctx, c.Config.SQLitePath)
		if err != nil {
			return err
		}
		repo, err := repository.NewSQLitePollRepository(ctx, db)
		if err != nil {
			_ = db.Close()
			return err
		}
		c.SQLite = db
		c.Repository = repo
		c.Logger.WithField("path", c.Config.SQLitePath).Info("Using sqlite poll store")
	default:
		return fmt.Errorf("unsupported database driver %q", c.Config.DatabaseDriver)
	}
	return nil
}

// Close releases every connection the container opened
func (c *Container) Close() error {
	var firstErr error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetPollService returns the poll service
func (c *Container) GetPollService() service.PollService {
	return c.Services.Polls
}

// GetAuthorizer returns the credential checker
func (c *Container) GetAuthorizer() service.Authorizer {
	return c.Services.Auth
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
