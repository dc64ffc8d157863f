// Package loader writes a resolved result into the graph store in
// dependency order: nodes first, then the edges between them.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/graph"
	"github.com/rohankatakam/trialgraph/internal/resolver"
)

var (
	sponsoredBy      = graph.EdgeSpec{Label: resolver.RelSponsoredBy, From: graph.TrialNode, To: graph.OrganizationNode}
	collaboratesWith = graph.EdgeSpec{Label: resolver.RelCollaboratesWith, From: graph.TrialNode, To: graph.OrganizationNode}
	testsDrug        = graph.EdgeSpec{Label: resolver.RelTestsDrug, From: graph.TrialNode, To: graph.DrugNode}
)

// Step is the outcome of upserting one node label or relationship type
type Step struct {
	Kind  string           `yaml:"kind"`
	Edge  bool             `yaml:"edge"`
	Stats graph.BatchStats `yaml:"stats"`
	// Stored is the post-load count in the store, -1 when not checked
	Stored int64 `yaml:"stored"`
}

// Report summarizes a load
type Report struct {
	Steps    []Step        `yaml:"steps"`
	Duration time.Duration `yaml:"duration"`
}

// Gaps lists the steps where the store applied fewer rows than requested.
func (r *Report) Gaps() []Step {
	var gaps []Step
	for _, s := range r.Steps {
		if s.Stats.Gap() > 0 {
			gaps = append(gaps, s)
		}
	}
	return gaps
}

// Options tune a load
type Options struct {
	BatchSize int
	// Reconcile counts every kind in the store after loading
	Reconcile bool
}

// Loader drives the batch upserter over a resolved result
type Loader struct {
	exec     graph.Executor
	upserter *graph.BatchUpserter
	logger   logrus.FieldLogger
}

func New(exec graph.Executor, batchConfig graph.BatchConfig, logger logrus.FieldLogger) *Loader {
	return &Loader{
		exec:     exec,
		upserter: graph.NewBatchUpserter(exec, batchConfig, logger),
		logger:   logger,
	}
}

// Load upserts Trial, Organization and Drug nodes, then SPONSORED_BY,
// COLLABORATES_WITH and TESTS_DRUG edges. The first failing batch aborts
// the load; steps completed so far are in the returned report.
func (l *Loader) Load(ctx context.Context, res *resolver.Result, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{}

	nodeSteps := []struct {
		spec graph.NodeSpec
		rows []map[string]any
	}{
		{graph.TrialNode, trialRows(res.Trials)},
		{graph.OrganizationNode, organizationRows(res.Organizations)},
		{graph.DrugNode, drugRows(res.Drugs)},
	}
	for _, step := range nodeSteps {
		stats, err := l.upserter.UpsertNodes(ctx, step.spec, step.rows, opts.BatchSize)
		report.Steps = append(report.Steps, Step{Kind: step.spec.Label, Stats: stats, Stored: -1})
		if err != nil {
			return report, fmt.Errorf("load %s nodes: %w", step.spec.Label, err)
		}
	}

	sponsors, collaborators := splitOrgEdges(res.TrialOrgEdges)
	edgeSteps := []struct {
		spec graph.EdgeSpec
		rows []graph.EdgeRow
	}{
		{sponsoredBy, sponsors},
		{collaboratesWith, collaborators},
		{testsDrug, drugEdgeRows(res.TrialDrugEdges)},
	}
	for _, step := range edgeSteps {
		stats, err := l.upserter.UpsertEdges(ctx, step.spec, step.rows, opts.BatchSize)
		report.Steps = append(report.Steps, Step{Kind: step.spec.Label, Edge: true, Stats: stats, Stored: -1})
		if err != nil {
			return report, fmt.Errorf("load %s edges: %w", step.spec.Label, err)
		}
	}

	if opts.Reconcile {
		if err := l.reconcile(ctx, report); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	l.logger.WithFields(logrus.Fields{
		"steps":    len(report.Steps),
		"gaps":     len(report.Gaps()),
		"duration": report.Duration.String(),
	}).Info("Load complete")
	return report, nil
}

// reconcile fills Stored for every step from the store's own counts
func (l *Loader) reconcile(ctx context.Context, report *Report) error {
	for i := range report.Steps {
		step := &report.Steps[i]
		var (
			n   int64
			err error
		)
		if step.Edge {
			n, err = graph.CountEdges(ctx, l.exec, step.Kind)
		} else {
			n, err = graph.CountNodes(ctx, l.exec, step.Kind)
		}
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", step.Kind, err)
		}
		step.Stored = n

		fields := logrus.Fields{
			"kind":      step.Kind,
			"requested": step.Stats.Requested,
			"applied":   step.Stats.Applied,
			"stored":    n,
		}
		if step.Stats.Gap() > 0 {
			l.logger.WithFields(fields).Warn("Referential gap after load")
		} else {
			l.logger.WithFields(fields).Debug("Reconciled")
		}
	}
	return nil
}

func trialRows(trials []resolver.Trial) []map[string]any {
	rows := make([]map[string]any, len(trials))
	for i, t := range trials {
		rows[i] = t.Properties()
	}
	return rows
}

func organizationRows(orgs []resolver.Organization) []map[string]any {
	rows := make([]map[string]any, len(orgs))
	for i, o := range orgs {
		rows[i] = o.Properties()
	}
	return rows
}

func drugRows(drugs []resolver.Drug) []map[string]any {
	rows := make([]map[string]any, len(drugs))
	for i, d := range drugs {
		rows[i] = d.Properties()
	}
	return rows
}

func splitOrgEdges(edges []resolver.TrialOrgEdge) (sponsors, collaborators []graph.EdgeRow) {
	for _, e := range edges {
		row := graph.EdgeRow{From: e.NCTID, To: e.OrgID}
		if e.RelType == resolver.RelSponsoredBy {
			sponsors = append(sponsors, row)
		} else {
			collaborators = append(collaborators, row)
		}
	}
	return sponsors, collaborators
}

func drugEdgeRows(edges []resolver.TrialDrugEdge) []graph.EdgeRow {
	rows := make([]graph.EdgeRow, len(edges))
	for i, e := range edges {
		rows[i] = graph.EdgeRow{From: e.NCTID, To: e.DrugID}
	}
	return rows
}
