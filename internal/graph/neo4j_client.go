package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// ClientConfig holds connection settings
type ClientConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Client owns the driver and hands out executors
type Client struct {
	driver   neo4j.DriverWithContext
	logger   logrus.FieldLogger
	database string
}

// NewClient connects and verifies connectivity so a bad URI or credentials
// fail before any work starts.
func NewClient(ctx context.Context, cfg ClientConfig, logger logrus.FieldLogger) (*Client, error) {
	if cfg.URI == "" || cfg.User == "" || cfg.Password == "" {
		return nil, errors.ConfigErrorf("neo4j credentials missing: uri=%s, user=%s", cfg.URI, cfg.User)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 50
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = time.Hour
			config.ConnectionLivenessCheckTimeout = 5 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.ConfigErrorf("failed to create neo4j driver: %v", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, GetConfigForOperation(OpHealthCheck).Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, errors.NetworkErrorf(err, "failed to connect to neo4j at %s", cfg.URI)
	}

	logger = logger.WithField("component", "neo4j")
	logger.WithFields(logrus.Fields{
		"uri":      cfg.URI,
		"user":     cfg.User,
		"database": database,
	}).Info("Neo4j client connected")

	return &Client{driver: driver, logger: logger, database: database}, nil
}

// Executor returns a statement executor bound to the client's database
func (c *Client) Executor() *Neo4jExecutor {
	return NewNeo4jExecutor(c.driver, c.database)
}

// HealthCheck verifies connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// Close closes the driver
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	c.logger.Info("Neo4j client closed")
	return nil
}
