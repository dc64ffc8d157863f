package graph

import (
	"maps"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Operation names used for transaction configs
const (
	OpNodeUpsert  = "node_upsert"
	OpEdgeUpsert  = "edge_upsert"
	OpSchema      = "schema_setup"
	OpCount       = "count_query"
	OpHealthCheck = "health_check"
)

// TransactionConfig defines timeout and metadata for transactions.
// Metadata shows up in the server's query log.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultTransactionConfigs returns the config for each operation type
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		OpNodeUpsert: {
			Timeout: 3 * time.Minute,
			Metadata: map[string]any{
				"operation": OpNodeUpsert,
				"type":      "write",
			},
		},
		OpEdgeUpsert: {
			Timeout: 3 * time.Minute,
			Metadata: map[string]any{
				"operation": OpEdgeUpsert,
				"type":      "write",
			},
		},
		OpSchema: {
			Timeout: 5 * time.Minute, // index population can be slow on a full graph
			Metadata: map[string]any{
				"operation": OpSchema,
				"type":      "schema",
			},
		},
		OpCount: {
			Timeout: 30 * time.Second,
			Metadata: map[string]any{
				"operation": OpCount,
				"type":      "read",
			},
		},
		OpHealthCheck: {
			Timeout: 5 * time.Second,
			Metadata: map[string]any{
				"operation": OpHealthCheck,
				"type":      "read",
			},
		},
	}
}

// AsNeo4jConfig converts to driver transaction config functions
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	var configs []func(*neo4j.TransactionConfig)
	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}
	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}
	return configs
}

// GetConfigForOperation returns the config for operation, or a one minute
// fallback for unknown names.
func GetConfigForOperation(operation string) TransactionConfig {
	if config, ok := DefaultTransactionConfigs()[operation]; ok {
		return config
	}
	return TransactionConfig{
		Timeout: 60 * time.Second,
		Metadata: map[string]any{
			"operation": operation,
			"type":      "unknown",
		},
	}
}

// WithCustomMetadata returns a copy with key set in the metadata
func (tc TransactionConfig) WithCustomMetadata(key string, value any) TransactionConfig {
	md := make(map[string]any, len(tc.Metadata)+1)
	maps.Copy(md, tc.Metadata)
	md[key] = value
	return TransactionConfig{Timeout: tc.Timeout, Metadata: md}
}

// WithMetadata merges extra into a copy of the metadata
func (tc TransactionConfig) WithMetadata(extra map[string]any) TransactionConfig {
	out := tc
	for k, v := range extra {
		out = out.WithCustomMetadata(k, v)
	}
	return out
}

// WithTimeout returns a copy with a custom timeout; zero keeps the current one
func (tc TransactionConfig) WithTimeout(timeout time.Duration) TransactionConfig {
	if timeout <= 0 {
		return tc
	}
	return TransactionConfig{Timeout: timeout, Metadata: tc.Metadata}
}
