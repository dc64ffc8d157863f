package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Statement is one parameterized Cypher statement run in its own
// transaction.
type Statement struct {
	Cypher  string
	Params  map[string]any
	Config  TransactionConfig
	Routing RoutingMode
}

// Record is one result row keyed by column
type Record map[string]any

// Executor runs statements against a graph store. Each call is one
// transaction: it either commits fully or not at all.
type Executor interface {
	Execute(ctx context.Context, stmt Statement) ([]Record, error)
}

// Neo4jExecutor runs statements through managed transactions, so the
// driver retries transient failures inside one call.
type Neo4jExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jExecutor(driver neo4j.DriverWithContext, database string) *Neo4jExecutor {
	return &Neo4jExecutor{driver: driver, database: database}
}

// Execute runs stmt with its timeout and metadata and collects every record.
func (e *Neo4jExecutor) Execute(ctx context.Context, stmt Statement) ([]Record, error) {
	session := SessionWithRouting(ctx, e.driver, stmt.Routing, e.database)
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt.Cypher, stmt.Params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Record, len(records))
		for i, r := range records {
			out[i] = r.AsMap()
		}
		return out, nil
	}

	var (
		raw any
		err error
	)
	if stmt.Routing == RoutingRead {
		raw, err = session.ExecuteRead(ctx, work, stmt.Config.AsNeo4jConfig()...)
	} else {
		raw, err = session.ExecuteWrite(ctx, work, stmt.Config.AsNeo4jConfig()...)
	}
	if err != nil {
		return nil, err
	}
	return raw.([]Record), nil
}

// countFrom reads an integer column from the first record. Missing rows
// count as zero.
func countFrom(records []Record, column string) int64 {
	if len(records) == 0 {
		return 0
	}
	switch v := records[0][column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
