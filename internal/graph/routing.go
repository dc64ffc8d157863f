package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// RoutingMode selects the cluster members a session talks to
type RoutingMode int

const (
	// RoutingWrite routes to the leader
	RoutingWrite RoutingMode = iota
	// RoutingRead may use followers and read replicas
	RoutingRead
)

func (m RoutingMode) String() string {
	if m == RoutingRead {
		return "read"
	}
	return "write"
}

// SessionWithRouting opens a session on database with the given routing.
// The caller closes it.
func SessionWithRouting(
	ctx context.Context,
	driver neo4j.DriverWithContext,
	mode RoutingMode,
	database string,
) neo4j.SessionWithContext {
	config := neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeWrite,
	}
	if mode == RoutingRead {
		config.AccessMode = neo4j.AccessModeRead
	}
	return driver.NewSession(ctx, config)
}
