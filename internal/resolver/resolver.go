// Package resolver turns the raw extract tables into deduplicated trial,
// organization and drug tables plus the edges between them.
package resolver

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/aact"
	"github.com/rohankatakam/trialgraph/internal/classify"
	"github.com/rohankatakam/trialgraph/internal/identity"
	"github.com/rohankatakam/trialgraph/internal/textnorm"
)

// cancellation is checked once per this many rows
const checkEvery = 1000

var drugTypes = map[string]bool{
	"Drug":               true,
	"Biological":         true,
	"Biological/Vaccine": true,
}

// Resolver builds Results. It holds no state between calls.
type Resolver struct {
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve validates the dataset schema, then derives every table. A schema
// error is returned before any row is read.
func (r *Resolver) Resolve(ctx context.Context, ds aact.Dataset) (*Result, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{}

	var err error
	if res.Trials, err = r.resolveTrials(ctx, ds.Studies, ds.Interventions); err != nil {
		return nil, err
	}
	if res.Organizations, res.TrialOrgEdges, err = r.resolveOrganizations(ctx, ds.Sponsors); err != nil {
		return nil, err
	}
	if res.Drugs, res.TrialDrugEdges, err = r.resolveDrugs(ctx, ds.Interventions); err != nil {
		return nil, err
	}
	res.ComputeMetrics()

	r.logger.WithFields(logrus.Fields{
		"trials":                 res.Metrics.Trials,
		"organizations":          res.Metrics.Organizations,
		"drugs":                  res.Metrics.Drugs,
		"trial_org_edges":        res.Metrics.TrialOrgEdges,
		"trial_drug_edges":       res.Metrics.TrialDrugEdges,
		"pct_trials_with_route":  strconv.FormatFloat(res.Metrics.PctTrialsWithRoute, 'f', 2, 64),
		"pct_trials_with_dosage": strconv.FormatFloat(res.Metrics.PctTrialsWithDosageForm, 'f', 2, 64),
		"duration":               time.Since(start).String(),
	}).Info("Resolution complete")

	return res, nil
}

func checkContext(ctx context.Context, i int) error {
	if i%checkEvery == 0 {
		return ctx.Err()
	}
	return nil
}

// groupInterventions indexes interventions by trial in one pass and orders
// each group by the intervention id so aggregation does not depend on
// extract row order.
func groupInterventions(ctx context.Context, interventions *aact.Table) (map[string][]aact.Row, error) {
	groups := make(map[string][]aact.Row)
	for i, row := range interventions.Rows {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		id := row.Get(aact.ColNCTID)
		groups[id] = append(groups[id], row)
	}
	if !interventions.HasColumn(aact.ColID) {
		return groups, nil
	}
	for _, rows := range groups {
		sort.SliceStable(rows, func(a, b int) bool {
			return lessID(rows[a].Get(aact.ColID), rows[b].Get(aact.ColID))
		})
	}
	return groups, nil
}

// lessID compares numerically when both ids parse, lexically otherwise.
func lessID(a, b string) bool {
	ai, aerr := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	bi, berr := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// aggregateRouteDosage takes the first route and the first dosage form
// found across a trial's interventions. Every intervention type counts.
func aggregateRouteDosage(rows []aact.Row) (classify.Route, classify.DosageForm) {
	var route classify.Route
	var form classify.DosageForm
	for _, row := range rows {
		rt, df := classify.ExtractRouteAndDosage(row.Get(aact.ColInterventionName), row.Get(aact.ColInterventionType))
		if route == "" {
			route = rt
		}
		if form == "" {
			form = df
		}
		if route != "" && form != "" {
			break
		}
	}
	return route, form
}

func (r *Resolver) resolveTrials(ctx context.Context, studies, interventions *aact.Table) ([]Trial, error) {
	groups, err := groupInterventions(ctx, interventions)
	if err != nil {
		return nil, err
	}

	trials := make([]Trial, 0, studies.Len())
	for i, row := range studies.Rows {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		nctID := row.Get(aact.ColNCTID)
		route, form := aggregateRouteDosage(groups[nctID])
		trials = append(trials, Trial{
			NCTID:          nctID,
			Title:          row.Get(aact.ColBriefTitle),
			Phase:          row.Get(aact.ColPhase),
			Status:         row.Get(aact.ColOverallStatus),
			StartDate:      row.Get(aact.ColStartDate),
			CompletionDate: row.Get(aact.ColCompletionDate),
			StudyType:      row.Get(aact.ColStudyType),
			Route:          route,
			DosageForm:     form,
		})
	}

	r.logger.WithField("trials", len(trials)).Debug("Resolved trials")
	return trials, nil
}

func (r *Resolver) resolveOrganizations(ctx context.Context, sponsors *aact.Table) ([]Organization, []TrialOrgEdge, error) {
	seen := make(map[string]bool)
	var orgs []Organization
	var edges []TrialOrgEdge

	for i, row := range sponsors.Rows {
		if err := checkContext(ctx, i); err != nil {
			return nil, nil, err
		}
		raw := row.Get(aact.ColName)
		norm := textnorm.Normalize(raw)
		if norm == "" {
			continue
		}
		orgID := identity.OrganizationID(norm)
		if !seen[orgID] {
			seen[orgID] = true
			orgs = append(orgs, Organization{
				OrgID:       orgID,
				NameNorm:    norm,
				NameRaw:     raw,
				AgencyClass: row.Get(aact.ColAgencyClass),
			})
		}

		rel := RelCollaboratesWith
		if strings.EqualFold(strings.TrimSpace(row.Get(aact.ColLeadOrCollaborator)), "lead") {
			rel = RelSponsoredBy
		}
		edges = append(edges, TrialOrgEdge{
			NCTID:   row.Get(aact.ColNCTID),
			OrgID:   orgID,
			RelType: rel,
		})
	}

	r.logger.WithFields(logrus.Fields{
		"organizations": len(orgs),
		"edges":         len(edges),
	}).Debug("Resolved organizations")
	return orgs, edges, nil
}

func (r *Resolver) resolveDrugs(ctx context.Context, interventions *aact.Table) ([]Drug, []TrialDrugEdge, error) {
	seen := make(map[string]bool)
	var drugs []Drug
	var edges []TrialDrugEdge

	for i, row := range interventions.Rows {
		if err := checkContext(ctx, i); err != nil {
			return nil, nil, err
		}
		if !drugTypes[row.Get(aact.ColInterventionType)] {
			continue
		}
		raw := row.Get(aact.ColInterventionName)
		norm := textnorm.Normalize(raw)
		if norm == "" {
			continue
		}
		drugID := identity.DrugID(norm)
		if !seen[drugID] {
			seen[drugID] = true
			drugs = append(drugs, Drug{DrugID: drugID, NameNorm: norm, NameRaw: raw})
		}
		edges = append(edges, TrialDrugEdge{
			NCTID:  row.Get(aact.ColNCTID),
			DrugID: drugID,
		})
	}

	r.logger.WithFields(logrus.Fields{
		"drugs": len(drugs),
		"edges": len(edges),
	}).Debug("Resolved drugs")
	return drugs, edges, nil
}
