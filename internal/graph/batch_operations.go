package graph

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// BatchStats reports what one upsert call did
type BatchStats struct {
	Requested int `yaml:"requested"`
	Applied   int `yaml:"applied"`
	Batches   int `yaml:"batches"`
}

// Gap is the number of requested rows the store did not apply
func (s BatchStats) Gap() int {
	return s.Requested - s.Applied
}

// BatchUpserter writes node and edge rows in UNWIND batches. Batches run
// in order over one executor and each commits on its own, so a failure
// leaves earlier batches in place and a rerun converges.
type BatchUpserter struct {
	exec   Executor
	config BatchConfig
	logger logrus.FieldLogger
}

func NewBatchUpserter(exec Executor, config BatchConfig, logger logrus.FieldLogger) *BatchUpserter {
	return &BatchUpserter{exec: exec, config: config, logger: logger}
}

// UpsertNodes merges rows into spec.Label keyed by spec.Key. Each row must
// carry the key property; all other properties overwrite the node's.
func (b *BatchUpserter) UpsertNodes(ctx context.Context, spec NodeSpec, rows []map[string]any, batchSize int) (BatchStats, error) {
	query, err := buildNodeUpsert(spec)
	if err != nil {
		return BatchStats{}, errors.ValidationErrorf("%v", err)
	}

	params := make([]any, len(rows))
	for i, r := range rows {
		params[i] = r
	}
	return b.run(ctx, spec.Label, query, OpNodeUpsert, params, batchSize)
}

// UpsertEdges merges spec.Label relationships between existing nodes.
// Rows whose endpoints are missing are skipped by the store and show up as
// a gap between requested and applied.
func (b *BatchUpserter) UpsertEdges(ctx context.Context, spec EdgeSpec, rows []EdgeRow, batchSize int) (BatchStats, error) {
	query, err := buildEdgeUpsert(spec)
	if err != nil {
		return BatchStats{}, errors.ValidationErrorf("%v", err)
	}

	params := make([]any, len(rows))
	for i, r := range rows {
		params[i] = map[string]any{"from": r.From, "to": r.To}
	}
	stats, err := b.run(ctx, spec.Label, query, OpEdgeUpsert, params, batchSize)
	if err != nil {
		return stats, err
	}

	if gap := stats.Gap(); gap > 0 {
		b.logger.WithFields(logrus.Fields{
			"rel_type":  spec.Label,
			"requested": stats.Requested,
			"applied":   stats.Applied,
			"missing":   gap,
		}).Warn("Some edges were not created, endpoint nodes may be missing")
	}
	return stats, nil
}

func (b *BatchUpserter) run(ctx context.Context, label, query, operation string, rows []any, batchSize int) (BatchStats, error) {
	stats := BatchStats{Requested: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}

	batchSize = b.config.GetBatchSizeForLabel(label, batchSize)
	txConfig := GetConfigForOperation(operation).
		WithTimeout(b.config.Timeout).
		WithMetadata(b.config.Metadata).
		WithCustomMetadata("label", label)

	start := time.Now()
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))

		records, err := b.exec.Execute(ctx, Statement{
			Cypher:  query,
			Params:  map[string]any{"rows": rows[i:end]},
			Config:  txConfig,
			Routing: RoutingWrite,
		})
		if err != nil {
			return stats, errors.DatabaseErrorf(err, "batch %s upsert failed (batch %d-%d)", label, i, end).
				WithContext("label", label).
				WithContext("batch_start", i).
				WithContext("batch_end", end)
		}

		stats.Batches++
		stats.Applied += int(countFrom(records, "applied"))

		b.logger.WithFields(logrus.Fields{
			"label": label,
			"batch": stats.Batches,
			"rows":  end - i,
		}).Debug("Batch applied")
	}

	b.logger.WithFields(logrus.Fields{
		"label":     label,
		"requested": stats.Requested,
		"applied":   stats.Applied,
		"batches":   stats.Batches,
		"duration":  time.Since(start).String(),
	}).Info("Upsert complete")
	return stats, nil
}

// CountNodes returns the number of nodes carrying label.
func CountNodes(ctx context.Context, exec Executor, label string) (int64, error) {
	query, err := buildNodeCount(label)
	if err != nil {
		return 0, errors.ValidationErrorf("%v", err)
	}
	return count(ctx, exec, query, label)
}

// CountEdges returns the number of relationships of relType.
func CountEdges(ctx context.Context, exec Executor, relType string) (int64, error) {
	query, err := buildEdgeCount(relType)
	if err != nil {
		return 0, errors.ValidationErrorf("%v", err)
	}
	return count(ctx, exec, query, relType)
}

func count(ctx context.Context, exec Executor, query, name string) (int64, error) {
	records, err := exec.Execute(ctx, Statement{
		Cypher:  query,
		Config:  GetConfigForOperation(OpCount),
		Routing: RoutingRead,
	})
	if err != nil {
		return 0, errors.DatabaseErrorf(err, "count of %s failed", name)
	}
	return countFrom(records, "count"), nil
}
