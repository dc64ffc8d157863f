package graph

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/trialgraph/internal/errors"
	"github.com/rohankatakam/trialgraph/internal/logging"
)

func trialRows(n int, title string) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"nct_id": fmt.Sprintf("NCT%03d", i),
			"title":  title,
			"route":  nil,
		}
	}
	return rows
}

func newUpserter(g *fakeGraph) *BatchUpserter {
	return NewBatchUpserter(g, DefaultBatchConfig(), logging.Discard())
}

func TestUpsertNodesBatches(t *testing.T) {
	g := newFakeGraph()
	stats, err := newUpserter(g).UpsertNodes(context.Background(), TrialNode, trialRows(25, "a"), 10)
	require.NoError(t, err)

	assert.Equal(t, BatchStats{Requested: 25, Applied: 25, Batches: 3}, stats)
	require.Len(t, g.statements, 3)
	assert.Len(t, g.statements[2].Params["rows"], 5)
	assert.Contains(t, g.statements[0].Cypher, "MERGE (n:Trial {nct_id: row.nct_id})")
	assert.Contains(t, g.statements[0].Cypher, "SET n += row")
	assert.Equal(t, RoutingWrite, g.statements[0].Routing)
}

func TestUpsertNodesDefaultBatchSize(t *testing.T) {
	g := newFakeGraph()
	stats, err := newUpserter(g).UpsertNodes(context.Background(), TrialNode, trialRows(DefaultBatchSize+1, "a"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Batches)

	g = newFakeGraph()
	cfg := DefaultBatchConfig()
	cfg.LabelBatchSizes = map[string]int{"Trial": 4}
	stats, err = NewBatchUpserter(g, cfg, logging.Discard()).UpsertNodes(context.Background(), TrialNode, trialRows(9, "a"), -1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Batches)
}

func TestUpsertNodesIdempotent(t *testing.T) {
	g := newFakeGraph()
	u := newUpserter(g)

	first := trialRows(3, "first")
	first[0]["route"] = "oral"
	_, err := u.UpsertNodes(context.Background(), TrialNode, first, 2)
	require.NoError(t, err)
	assert.Equal(t, "oral", g.node("Trial", "NCT000")["route"])

	_, err = u.UpsertNodes(context.Background(), TrialNode, trialRows(3, "second"), 2)
	require.NoError(t, err)

	count, err := CountNodes(context.Background(), g, "Trial")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	node := g.node("Trial", "NCT000")
	assert.Equal(t, "second", node["title"])
	// null in the second run clears the stale value
	assert.NotContains(t, node, "route")
}

func TestUpsertEdgesMissingEndpoint(t *testing.T) {
	g := newFakeGraph()
	u := newUpserter(g)
	ctx := context.Background()

	_, err := u.UpsertNodes(ctx, TrialNode, trialRows(2, "t"), 0)
	require.NoError(t, err)
	_, err = u.UpsertNodes(ctx, OrganizationNode, []map[string]any{{"org_id": "o1", "name_norm": "acme"}}, 0)
	require.NoError(t, err)

	spec := EdgeSpec{Label: "SPONSORED_BY", From: TrialNode, To: OrganizationNode}
	rows := []EdgeRow{
		{From: "NCT000", To: "o1"},
		{From: "NCT001", To: "o1"},
		{From: "NCT001", To: "missing"},
	}
	stats, err := u.UpsertEdges(ctx, spec, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, BatchStats{Requested: 3, Applied: 2, Batches: 2}, stats)
	assert.Equal(t, 1, stats.Gap())

	// rerun adds nothing
	_, err = u.UpsertEdges(ctx, spec, rows, 2)
	require.NoError(t, err)
	count, err := CountEdges(ctx, g, "SPONSORED_BY")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUpsertAbortsOnBatchError(t *testing.T) {
	g := newFakeGraph()
	g.failOn = 2
	g.failErr = stderrors.New("connection reset")

	stats, err := newUpserter(g).UpsertNodes(context.Background(), TrialNode, trialRows(30, "t"), 10)
	require.Error(t, err)

	assert.True(t, stderrors.Is(err, errors.Database))
	assert.Contains(t, err.Error(), "batch 10-20")
	assert.Contains(t, err.Error(), "connection reset")
	// first batch stays, third never ran
	assert.Equal(t, 1, stats.Batches)
	assert.Len(t, g.statements, 2)
	assert.NotNil(t, g.node("Trial", "NCT009"))
	assert.Nil(t, g.node("Trial", "NCT010"))
}

func TestUpsertTimeout(t *testing.T) {
	g := newFakeGraph()
	g.failOn = 1
	g.failErr = fmt.Errorf("tx: %w", context.DeadlineExceeded)

	_, err := newUpserter(g).UpsertNodes(context.Background(), DrugNode, []map[string]any{{"drug_id": "d"}}, 0)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Timeout))
}

func TestUpsertRejectsBadIdentifiers(t *testing.T) {
	g := newFakeGraph()
	u := newUpserter(g)

	_, err := u.UpsertNodes(context.Background(), NodeSpec{Label: "Trial) DETACH DELETE (x", Key: "id"}, trialRows(1, "t"), 0)
	assert.True(t, stderrors.Is(err, errors.Validation))

	_, err = u.UpsertEdges(context.Background(), EdgeSpec{Label: "BAD-REL", From: TrialNode, To: DrugNode}, []EdgeRow{{From: "a", To: "b"}}, 0)
	assert.True(t, stderrors.Is(err, errors.Validation))

	_, err = CountNodes(context.Background(), g, "1abc")
	assert.Error(t, err)

	assert.Empty(t, g.statements)
}

func TestUpsertEmptyRows(t *testing.T) {
	g := newFakeGraph()
	stats, err := newUpserter(g).UpsertNodes(context.Background(), TrialNode, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, BatchStats{}, stats)
	assert.Empty(t, g.statements)
}

func TestUpsertTransactionConfig(t *testing.T) {
	g := newFakeGraph()
	cfg := DefaultBatchConfig()
	cfg.Timeout = 42 * time.Second
	cfg.Metadata = map[string]any{"run_id": "r-1"}

	_, err := NewBatchUpserter(g, cfg, logging.Discard()).UpsertNodes(context.Background(), DrugNode, []map[string]any{{"drug_id": "d"}}, 0)
	require.NoError(t, err)

	tx := g.statements[0].Config
	assert.Equal(t, 42*time.Second, tx.Timeout)
	assert.Equal(t, "r-1", tx.Metadata["run_id"])
	assert.Equal(t, "Drug", tx.Metadata["label"])
	assert.Equal(t, OpNodeUpsert, tx.Metadata["operation"])

	// defaults are not mutated by per-call metadata
	assert.NotContains(t, GetConfigForOperation(OpNodeUpsert).Metadata, "run_id")
}

func TestSetupSchemaSkipsFailures(t *testing.T) {
	g := newFakeGraph()
	g.failOn = 1
	g.failErr = stderrors.New("equivalent constraint already exists")

	res, err := SetupSchema(context.Background(), g, map[string]any{"run_id": "r"}, logging.Discard())
	require.NoError(t, err)

	total := len(SchemaStatements())
	assert.Equal(t, SchemaResult{Applied: total - 1, Failed: 1}, res)
	require.Len(t, g.statements, total)
	for _, stmt := range g.statements {
		assert.True(t, strings.Contains(stmt.Cypher, "IF NOT EXISTS"), stmt.Cypher)
		assert.Equal(t, "r", stmt.Config.Metadata["run_id"])
	}
}

func TestSetupSchemaCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SetupSchema(ctx, newFakeGraph(), nil, logging.Discard())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountFrom(t *testing.T) {
	assert.EqualValues(t, 0, countFrom(nil, "count"))
	assert.EqualValues(t, 7, countFrom([]Record{{"count": int64(7)}}, "count"))
	assert.EqualValues(t, 3, countFrom([]Record{{"count": 3}}, "count"))
	assert.EqualValues(t, 0, countFrom([]Record{{"count": "x"}}, "count"))
}

func TestBuildEdgeUpsert(t *testing.T) {
	q, err := buildEdgeUpsert(EdgeSpec{Label: "TESTS_DRUG", From: TrialNode, To: DrugNode})
	require.NoError(t, err)
	assert.Contains(t, q, "MATCH (a:Trial {nct_id: row.from})")
	assert.Contains(t, q, "MATCH (b:Drug {drug_id: row.to})")
	assert.Contains(t, q, "MERGE (a)-[r:TESTS_DRUG]->(b)")
	assert.Contains(t, q, "RETURN count(r) AS applied")
}
