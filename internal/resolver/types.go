package resolver

import (
	"github.com/rohankatakam/trialgraph/internal/classify"
)

// Relationship labels between a trial and its sponsors or drugs
const (
	RelSponsoredBy      = "SPONSORED_BY"
	RelCollaboratesWith = "COLLABORATES_WITH"
	RelTestsDrug        = "TESTS_DRUG"
)

// Trial is one study with its aggregated route and dosage form.
// Route and DosageForm are empty when no intervention classified.
type Trial struct {
	NCTID          string              `db:"nct_id"`
	Title          string              `db:"title"`
	Phase          string              `db:"phase"`
	Status         string              `db:"status"`
	StartDate      string              `db:"start_date"`
	CompletionDate string              `db:"completion_date"`
	StudyType      string              `db:"study_type"`
	Route          classify.Route      `db:"route"`
	DosageForm     classify.DosageForm `db:"dosage_form"`
}

// Properties renders the node payload. Empty values become nil so a
// rerun clears attributes that disappeared upstream.
func (t Trial) Properties() map[string]any {
	return map[string]any{
		"nct_id":          t.NCTID,
		"title":           nullable(t.Title),
		"phase":           nullable(t.Phase),
		"status":          nullable(t.Status),
		"start_date":      nullable(t.StartDate),
		"completion_date": nullable(t.CompletionDate),
		"study_type":      nullable(t.StudyType),
		"route":           nullable(string(t.Route)),
		"dosage_form":     nullable(string(t.DosageForm)),
	}
}

// Organization is a deduplicated sponsor
type Organization struct {
	OrgID       string `db:"org_id"`
	NameNorm    string `db:"name_norm"`
	NameRaw     string `db:"name_raw"`
	AgencyClass string `db:"agency_class"`
}

func (o Organization) Properties() map[string]any {
	return map[string]any{
		"org_id":       o.OrgID,
		"name_norm":    o.NameNorm,
		"name_raw":     o.NameRaw,
		"agency_class": nullable(o.AgencyClass),
	}
}

// Drug is a deduplicated drug-like intervention
type Drug struct {
	DrugID   string `db:"drug_id"`
	NameNorm string `db:"name_norm"`
	NameRaw  string `db:"name_raw"`
}

func (d Drug) Properties() map[string]any {
	return map[string]any{
		"drug_id":   d.DrugID,
		"name_norm": d.NameNorm,
		"name_raw":  d.NameRaw,
	}
}

// TrialOrgEdge links a trial to an organization; RelType is
// RelSponsoredBy or RelCollaboratesWith.
type TrialOrgEdge struct {
	NCTID   string `db:"nct_id"`
	OrgID   string `db:"org_id"`
	RelType string `db:"rel_type"`
}

// TrialDrugEdge links a trial to a drug it tests
type TrialDrugEdge struct {
	NCTID  string `db:"nct_id"`
	DrugID string `db:"drug_id"`
}

// Metrics summarizes a resolution run
type Metrics struct {
	Trials                  int     `yaml:"trials" db:"trials"`
	Organizations           int     `yaml:"organizations" db:"organizations"`
	Drugs                   int     `yaml:"drugs" db:"drugs"`
	TrialOrgEdges           int     `yaml:"trial_org_edges" db:"trial_org_edges"`
	TrialDrugEdges          int     `yaml:"trial_drug_edges" db:"trial_drug_edges"`
	TrialsWithRoute         int     `yaml:"trials_with_route" db:"trials_with_route"`
	TrialsWithDosageForm    int     `yaml:"trials_with_dosage_form" db:"trials_with_dosage_form"`
	PctTrialsWithRoute      float64 `yaml:"pct_trials_with_route" db:"pct_trials_with_route"`
	PctTrialsWithDosageForm float64 `yaml:"pct_trials_with_dosage_form" db:"pct_trials_with_dosage_form"`
}

// Result holds the five derived tables
type Result struct {
	Trials         []Trial
	Organizations  []Organization
	Drugs          []Drug
	TrialOrgEdges  []TrialOrgEdge
	TrialDrugEdges []TrialDrugEdge
	Metrics        Metrics
}

// ComputeMetrics recounts the tables of r into r.Metrics.
func (r *Result) ComputeMetrics() {
	m := Metrics{
		Trials:         len(r.Trials),
		Organizations:  len(r.Organizations),
		Drugs:          len(r.Drugs),
		TrialOrgEdges:  len(r.TrialOrgEdges),
		TrialDrugEdges: len(r.TrialDrugEdges),
	}
	for _, t := range r.Trials {
		if t.Route != "" {
			m.TrialsWithRoute++
		}
		if t.DosageForm != "" {
			m.TrialsWithDosageForm++
		}
	}
	if m.Trials > 0 {
		m.PctTrialsWithRoute = float64(m.TrialsWithRoute) / float64(m.Trials) * 100
		m.PctTrialsWithDosageForm = float64(m.TrialsWithDosageForm) / float64(m.Trials) * 100
	}
	r.Metrics = m
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
