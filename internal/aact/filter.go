package aact

import (
	"github.com/sirupsen/logrus"
)

// FilterCriteria selects studies worth loading
type FilterCriteria struct {
	Phases     []string
	Statuses   []string
	MinStudies int
}

// FilterStudies keeps studies that have at least one intervention, a
// non-empty phase from the allowed list and an allowed status. Falling
// short of MinStudies only warns.
func FilterStudies(studies, interventions *Table, criteria FilterCriteria, logger logrus.FieldLogger) *Table {
	withInterventions := make(map[string]bool, interventions.Len())
	for _, r := range interventions.Rows {
		withInterventions[r.Get(ColNCTID)] = true
	}
	logger.WithField("studies_with_interventions", len(withInterventions)).Info("Filtering studies")

	phases := toSet(criteria.Phases)
	statuses := toSet(criteria.Statuses)

	filtered := studies.Filter(func(r Row) bool {
		phase := r.Get(ColPhase)
		return withInterventions[r.Get(ColNCTID)] &&
			phase != "" && phases[phase] &&
			statuses[r.Get(ColOverallStatus)]
	})

	fields := logrus.Fields{
		"total":    studies.Len(),
		"filtered": filtered.Len(),
		"target":   criteria.MinStudies,
	}
	if filtered.Len() < criteria.MinStudies {
		logger.WithFields(fields).Warn("Fewer studies match criteria than targeted")
	} else {
		logger.WithFields(fields).Info("Filtered studies")
	}
	return filtered
}

// RestrictTo keeps rows of t whose nct_id is in ids.
func RestrictTo(t *Table, ids map[string]bool) *Table {
	return t.Filter(func(r Row) bool { return ids[r.Get(ColNCTID)] })
}

// IDs collects the nct_id column of t.
func IDs(t *Table) map[string]bool {
	ids := make(map[string]bool, t.Len())
	for _, r := range t.Rows {
		ids[r.Get(ColNCTID)] = true
	}
	return ids
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}
