package validation

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/trialgraph/internal/aact"
	"github.com/rohankatakam/trialgraph/internal/errors"
	"github.com/rohankatakam/trialgraph/internal/graph"
	"github.com/rohankatakam/trialgraph/internal/logging"
	"github.com/rohankatakam/trialgraph/internal/resolver"
	"github.com/rohankatakam/trialgraph/internal/staging"
)

var countPattern = regexp.MustCompile(`^MATCH (?:\(n:(\w+)\)|\(\)-\[r:(\w+)\]->\(\))`)

// countExecutor answers count queries from a fixed table
type countExecutor struct {
	counts map[string]int64
	err    error
}

func (c *countExecutor) Execute(ctx context.Context, stmt graph.Statement) ([]graph.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	g := countPattern.FindStringSubmatch(stmt.Cypher)
	if g == nil {
		return nil, fmt.Errorf("unexpected statement: %s", stmt.Cypher)
	}
	kind := g[1] + g[2]
	return []graph.Record{{"count": c.counts[kind]}}, nil
}

func stagedResult() *resolver.Result {
	return &resolver.Result{
		Trials:        []resolver.Trial{{NCTID: "NCT1"}, {NCTID: "NCT2"}},
		Organizations: []resolver.Organization{{OrgID: "o1"}},
		TrialOrgEdges: []resolver.TrialOrgEdge{
			{NCTID: "NCT1", OrgID: "o1", RelType: resolver.RelSponsoredBy},
			{NCTID: "NCT2", OrgID: "o1", RelType: resolver.RelCollaboratesWith},
		},
	}
}

func TestValidateCounts(t *testing.T) {
	exec := &countExecutor{counts: map[string]int64{
		"Trial":             2,
		"Organization":      3,
		"SPONSORED_BY":      1,
		"COLLABORATES_WITH": 0,
	}}
	v := NewConsistencyValidator(nil, exec, 0, logging.Discard())

	results, err := v.Validate(context.Background(), stagedResult())
	require.NoError(t, err)
	require.Len(t, results, 6)

	byKind := make(map[string]ConsistencyResult)
	for _, r := range results {
		byKind[r.Kind] = r
	}

	assert.True(t, byKind["Trial"].Passed)
	assert.Equal(t, 100.0, byKind["Trial"].SyncPercent)

	// leftovers from earlier loads do not fail the check
	assert.True(t, byKind["Organization"].Passed)
	assert.InDelta(t, 300.0, byKind["Organization"].SyncPercent, 0.001)

	// nothing staged, nothing required
	assert.True(t, byKind["Drug"].Passed)
	assert.True(t, byKind["TESTS_DRUG"].Edge)

	assert.False(t, byKind["COLLABORATES_WITH"].Passed)
	assert.EqualValues(t, 1, byKind["COLLABORATES_WITH"].StagedCount)
	assert.False(t, AllPassed(results))

	LogResults(logging.Discard(), results)
}

func TestValidateCountsDistinctRows(t *testing.T) {
	ds := aact.Dataset{
		Studies: aact.NewTable(aact.TableStudies,
			[]string{"nct_id", "brief_title", "phase", "overall_status"},
			[]string{"NCT1", "Placebo study", "Phase 2", "RECRUITING"},
			[]string{"NCT1", "Placebo study", "Phase 2", "RECRUITING"},
		),
		Sponsors: aact.NewTable(aact.TableSponsors,
			[]string{"nct_id", "name", "agency_class", "lead_or_collaborator"},
			[]string{"NCT1", "Acme", "INDUSTRY", "lead"},
			[]string{"NCT1", "ACME ", "INDUSTRY", "lead"},
		),
		Interventions: aact.NewTable(aact.TableInterventions,
			[]string{"id", "nct_id", "intervention_name", "intervention_type"},
			[]string{"1", "NCT1", "Placebo", "Drug"},
			[]string{"2", "NCT1", "placebo", "Drug"},
		),
	}
	res, err := resolver.New(logging.Discard()).Resolve(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, res.TrialDrugEdges, 2)
	require.Len(t, res.TrialOrgEdges, 2)

	// what MERGE leaves behind for that result
	exec := &countExecutor{counts: map[string]int64{
		"Trial":        1,
		"Organization": 1,
		"Drug":         1,
		"SPONSORED_BY": 1,
		"TESTS_DRUG":   1,
	}}
	results, err := NewConsistencyValidator(nil, exec, 0, logging.Discard()).Validate(context.Background(), res)
	require.NoError(t, err)

	for _, r := range results {
		assert.True(t, r.Passed, r.Kind)
		if r.Kind == resolver.RelTestsDrug || r.Kind == resolver.RelSponsoredBy || r.Kind == "Trial" {
			assert.EqualValues(t, 1, r.StagedCount, r.Kind)
		}
	}
	assert.True(t, AllPassed(results))
}

func TestValidateThreshold(t *testing.T) {
	v := NewConsistencyValidator(nil, &countExecutor{}, 50, logging.Discard())
	assert.True(t, v.compare("Trial", false, 10, 5).Passed)
	assert.False(t, v.compare("Trial", false, 10, 4).Passed)
}

func TestValidateCountFailure(t *testing.T) {
	v := NewConsistencyValidator(nil, &countExecutor{err: stderrors.New("connection reset")}, 0, logging.Discard())
	_, err := v.Validate(context.Background(), stagedResult())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Database))
}

func TestValidateStaged(t *testing.T) {
	store, err := staging.NewSQLiteStore(filepath.Join(t.TempDir(), "staged.db"), logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	exec := &countExecutor{counts: map[string]int64{"Trial": 2, "Organization": 1, "SPONSORED_BY": 1, "COLLABORATES_WITH": 1}}
	v := NewConsistencyValidator(store, exec, 0, logging.Discard())

	_, err = v.ValidateStaged(context.Background())
	assert.True(t, stderrors.Is(err, staging.ErrNotFound))

	require.NoError(t, store.SaveResult(context.Background(), "run-1", stagedResult()))
	results, err := v.ValidateStaged(context.Background())
	require.NoError(t, err)
	assert.True(t, AllPassed(results))
}
