package graph

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Node kinds of the trial graph
var (
	TrialNode        = NodeSpec{Label: "Trial", Key: "nct_id"}
	OrganizationNode = NodeSpec{Label: "Organization", Key: "org_id"}
	DrugNode         = NodeSpec{Label: "Drug", Key: "drug_id"}
)

// SchemaStatement is one idempotent constraint or index definition
type SchemaStatement struct {
	Name  string
	Query string
}

// SchemaStatements lists uniqueness constraints on every node key plus the
// lookup indexes used by downstream queries.
func SchemaStatements() []SchemaStatement {
	return []SchemaStatement{
		{"trial_nct_id_unique", "CREATE CONSTRAINT trial_nct_id_unique IF NOT EXISTS FOR (t:Trial) REQUIRE t.nct_id IS UNIQUE"},
		{"org_org_id_unique", "CREATE CONSTRAINT org_org_id_unique IF NOT EXISTS FOR (o:Organization) REQUIRE o.org_id IS UNIQUE"},
		{"drug_drug_id_unique", "CREATE CONSTRAINT drug_drug_id_unique IF NOT EXISTS FOR (d:Drug) REQUIRE d.drug_id IS UNIQUE"},
		{"trial_status_index", "CREATE INDEX trial_status_index IF NOT EXISTS FOR (t:Trial) ON (t.status)"},
		{"trial_phase_index", "CREATE INDEX trial_phase_index IF NOT EXISTS FOR (t:Trial) ON (t.phase)"},
		{"org_name_norm_index", "CREATE INDEX org_name_norm_index IF NOT EXISTS FOR (o:Organization) ON (o.name_norm)"},
		{"drug_name_norm_index", "CREATE INDEX drug_name_norm_index IF NOT EXISTS FOR (d:Drug) ON (d.name_norm)"},
	}
}

// SchemaResult counts statements that succeeded or were skipped
type SchemaResult struct {
	Applied int `yaml:"applied"`
	Failed  int `yaml:"failed"`
}

// SetupSchema applies every schema statement. A failing statement usually
// means an equivalent definition already exists, so it is logged and
// skipped. Only cancellation of ctx stops the setup.
func SetupSchema(ctx context.Context, exec Executor, metadata map[string]any, logger logrus.FieldLogger) (SchemaResult, error) {
	var result SchemaResult
	txConfig := GetConfigForOperation(OpSchema).WithMetadata(metadata)

	for _, stmt := range SchemaStatements() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, err := exec.Execute(ctx, Statement{
			Cypher:  stmt.Query,
			Config:  txConfig.WithCustomMetadata("statement", stmt.Name),
			Routing: RoutingWrite,
		})
		if err != nil {
			result.Failed++
			logger.WithError(err).WithField("statement", stmt.Name).Debug("Schema statement skipped")
			continue
		}
		result.Applied++
	}

	logger.WithFields(logrus.Fields{
		"applied": result.Applied,
		"skipped": result.Failed,
	}).Info("Schema setup complete")
	return result, nil
}
