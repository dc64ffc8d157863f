// Package validation compares the staged result against what the graph
// store actually holds.
package validation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/graph"
	"github.com/rohankatakam/trialgraph/internal/resolver"
	"github.com/rohankatakam/trialgraph/internal/staging"
)

// DefaultThreshold is the minimum graph/staged ratio, in percent
const DefaultThreshold = 95.0

// ConsistencyResult compares one node label or relationship type
type ConsistencyResult struct {
	Kind        string  `yaml:"kind"`
	Edge        bool    `yaml:"edge"`
	StagedCount int64   `yaml:"staged"`
	GraphCount  int64   `yaml:"graph"`
	SyncPercent float64 `yaml:"sync_percent"`
	Passed      bool    `yaml:"passed"`
}

// ConsistencyValidator checks staged counts against the graph store
type ConsistencyValidator struct {
	store     staging.Store
	exec      graph.Executor
	threshold float64
	logger    logrus.FieldLogger
}

// NewConsistencyValidator creates a validator. A threshold <= 0 uses
// DefaultThreshold.
func NewConsistencyValidator(store staging.Store, exec graph.Executor, threshold float64, logger logrus.FieldLogger) *ConsistencyValidator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ConsistencyValidator{
		store:     store,
		exec:      exec,
		threshold: threshold,
		logger:    logger.WithField("component", "validation"),
	}
}

// ValidateStaged compares every node label and relationship type of the
// staged result with the graph. The graph may hold more than was staged
// since loads never delete.
func (v *ConsistencyValidator) ValidateStaged(ctx context.Context) ([]ConsistencyResult, error) {
	res, err := v.store.LoadResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("read staged result: %w", err)
	}
	return v.Validate(ctx, res)
}

// Validate compares res with the graph. Staged rows are counted by
// identity since MERGE keeps one node per key and one relationship per
// (source, type, target).
func (v *ConsistencyValidator) Validate(ctx context.Context, res *resolver.Result) ([]ConsistencyResult, error) {
	trials := make(map[string]struct{}, len(res.Trials))
	for _, t := range res.Trials {
		trials[t.NCTID] = struct{}{}
	}
	orgs := make(map[string]struct{}, len(res.Organizations))
	for _, o := range res.Organizations {
		orgs[o.OrgID] = struct{}{}
	}
	drugs := make(map[string]struct{}, len(res.Drugs))
	for _, d := range res.Drugs {
		drugs[d.DrugID] = struct{}{}
	}
	sponsored := make(map[resolver.TrialOrgEdge]struct{})
	collaborating := make(map[resolver.TrialOrgEdge]struct{})
	for _, e := range res.TrialOrgEdges {
		if e.RelType == resolver.RelSponsoredBy {
			sponsored[e] = struct{}{}
		} else {
			collaborating[e] = struct{}{}
		}
	}
	drugEdges := make(map[resolver.TrialDrugEdge]struct{}, len(res.TrialDrugEdges))
	for _, e := range res.TrialDrugEdges {
		drugEdges[e] = struct{}{}
	}

	checks := []struct {
		kind   string
		edge   bool
		staged int
	}{
		{graph.TrialNode.Label, false, len(trials)},
		{graph.OrganizationNode.Label, false, len(orgs)},
		{graph.DrugNode.Label, false, len(drugs)},
		{resolver.RelSponsoredBy, true, len(sponsored)},
		{resolver.RelCollaboratesWith, true, len(collaborating)},
		{resolver.RelTestsDrug, true, len(drugEdges)},
	}

	results := make([]ConsistencyResult, 0, len(checks))
	for _, c := range checks {
		var (
			n   int64
			err error
		)
		if c.edge {
			n, err = graph.CountEdges(ctx, v.exec, c.kind)
		} else {
			n, err = graph.CountNodes(ctx, v.exec, c.kind)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to validate %s: %w", c.kind, err)
		}
		results = append(results, v.compare(c.kind, c.edge, int64(c.staged), n))
	}
	return results, nil
}

func (v *ConsistencyValidator) compare(kind string, edge bool, staged, stored int64) ConsistencyResult {
	sync := 100.0
	if staged > 0 {
		sync = float64(stored) / float64(staged) * 100.0
	}
	return ConsistencyResult{
		Kind:        kind,
		Edge:        edge,
		StagedCount: staged,
		GraphCount:  stored,
		SyncPercent: sync,
		Passed:      sync >= v.threshold,
	}
}

// AllPassed reports whether every result met the threshold
func AllPassed(results []ConsistencyResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// LogResults logs one line per result and a verdict
func LogResults(logger logrus.FieldLogger, results []ConsistencyResult) {
	for _, r := range results {
		logger.WithFields(logrus.Fields{
			"kind":   r.Kind,
			"staged": r.StagedCount,
			"graph":  r.GraphCount,
			"sync":   fmt.Sprintf("%.1f%%", r.SyncPercent),
		}).Info("Consistency")
	}

	if AllPassed(results) {
		logger.Info("All node and relationship counts within threshold")
	} else {
		logger.Warn("Graph is missing staged rows, rerun 'trialgraph load'")
	}
}
