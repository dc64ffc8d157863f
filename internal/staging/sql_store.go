package staging

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/errors"
	"github.com/rohankatakam/trialgraph/internal/resolver"
)

// schema is portable between SQLite and PostgreSQL. seq keeps the
// resolver's row order across a round trip.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS staged_runs (
		run_id TEXT NOT NULL,
		saved_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staged_trials (
		seq INTEGER NOT NULL,
		nct_id TEXT NOT NULL,
		title TEXT NOT NULL,
		phase TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		completion_date TEXT NOT NULL,
		study_type TEXT NOT NULL,
		route TEXT NOT NULL,
		dosage_form TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staged_organizations (
		seq INTEGER NOT NULL,
		org_id TEXT NOT NULL,
		name_norm TEXT NOT NULL,
		name_raw TEXT NOT NULL,
		agency_class TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staged_drugs (
		seq INTEGER NOT NULL,
		drug_id TEXT NOT NULL,
		name_norm TEXT NOT NULL,
		name_raw TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staged_trial_org_edges (
		seq INTEGER NOT NULL,
		nct_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		rel_type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staged_trial_drug_edges (
		seq INTEGER NOT NULL,
		nct_id TEXT NOT NULL,
		drug_id TEXT NOT NULL
	)`,
}

var stagedTables = []string{
	"staged_runs",
	"staged_trials",
	"staged_organizations",
	"staged_drugs",
	"staged_trial_org_edges",
	"staged_trial_drug_edges",
}

type trialRow struct {
	Seq int `db:"seq"`
	resolver.Trial
}

type organizationRow struct {
	Seq int `db:"seq"`
	resolver.Organization
}

type drugRow struct {
	Seq int `db:"seq"`
	resolver.Drug
}

type trialOrgEdgeRow struct {
	Seq int `db:"seq"`
	resolver.TrialOrgEdge
}

type trialDrugEdgeRow struct {
	Seq int `db:"seq"`
	resolver.TrialDrugEdge
}

// sqlStore implements Store over any sqlx database
type sqlStore struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.DatabaseErrorf(err, "init staging schema")
		}
	}
	return nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// SaveResult replaces the staged tables with result in one transaction.
func (s *sqlStore) SaveResult(ctx context.Context, runID string, result *resolver.Result) error {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseErrorf(err, "begin staging transaction")
	}
	defer tx.Rollback()

	for _, table := range stagedTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.DatabaseErrorf(err, "truncate %s", table)
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO staged_runs (run_id, saved_at) VALUES (?, ?)`),
		runID, time.Now().UTC())
	if err != nil {
		return errors.DatabaseErrorf(err, "save run record")
	}

	err = insertAll(ctx, tx, `INSERT INTO staged_trials
		(seq, nct_id, title, phase, status, start_date, completion_date, study_type, route, dosage_form)
		VALUES (:seq, :nct_id, :title, :phase, :status, :start_date, :completion_date, :study_type, :route, :dosage_form)`,
		result.Trials, func(i int, t resolver.Trial) any { return trialRow{i, t} })
	if err != nil {
		return errors.DatabaseErrorf(err, "save trials")
	}

	err = insertAll(ctx, tx, `INSERT INTO staged_organizations
		(seq, org_id, name_norm, name_raw, agency_class)
		VALUES (:seq, :org_id, :name_norm, :name_raw, :agency_class)`,
		result.Organizations, func(i int, o resolver.Organization) any { return organizationRow{i, o} })
	if err != nil {
		return errors.DatabaseErrorf(err, "save organizations")
	}

	err = insertAll(ctx, tx, `INSERT INTO staged_drugs
		(seq, drug_id, name_norm, name_raw)
		VALUES (:seq, :drug_id, :name_norm, :name_raw)`,
		result.Drugs, func(i int, d resolver.Drug) any { return drugRow{i, d} })
	if err != nil {
		return errors.DatabaseErrorf(err, "save drugs")
	}

	err = insertAll(ctx, tx, `INSERT INTO staged_trial_org_edges
		(seq, nct_id, org_id, rel_type)
		VALUES (:seq, :nct_id, :org_id, :rel_type)`,
		result.TrialOrgEdges, func(i int, e resolver.TrialOrgEdge) any { return trialOrgEdgeRow{i, e} })
	if err != nil {
		return errors.DatabaseErrorf(err, "save trial-organization edges")
	}

	err = insertAll(ctx, tx, `INSERT INTO staged_trial_drug_edges
		(seq, nct_id, drug_id)
		VALUES (:seq, :nct_id, :drug_id)`,
		result.TrialDrugEdges, func(i int, e resolver.TrialDrugEdge) any { return trialDrugEdgeRow{i, e} })
	if err != nil {
		return errors.DatabaseErrorf(err, "save trial-drug edges")
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseErrorf(err, "commit staging transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"trials":   len(result.Trials),
		"orgs":     len(result.Organizations),
		"drugs":    len(result.Drugs),
		"duration": time.Since(start).String(),
	}).Info("Staged resolved tables")
	return nil
}

// insertAll runs one prepared named insert per row.
func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T, wrap func(int, T) any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, wrap(i, r)); err != nil {
			return err
		}
	}
	return nil
}

// LastRun returns the run that produced the staged tables.
func (s *sqlStore) LastRun(ctx context.Context) (*RunInfo, error) {
	var info RunInfo
	err := s.db.GetContext(ctx, &info, `SELECT run_id, saved_at FROM staged_runs LIMIT 1`)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "read staged run")
	}
	return &info, nil
}

// LoadResult reads the staged tables back in their original order and
// recomputes the metrics.
func (s *sqlStore) LoadResult(ctx context.Context) (*resolver.Result, error) {
	info, err := s.LastRun(ctx)
	if err != nil {
		return nil, err
	}

	var (
		trials    []trialRow
		orgs      []organizationRow
		drugs     []drugRow
		orgEdges  []trialOrgEdgeRow
		drugEdges []trialDrugEdgeRow
	)
	queries := []struct {
		dest  any
		table string
	}{
		{&trials, "staged_trials"},
		{&orgs, "staged_organizations"},
		{&drugs, "staged_drugs"},
		{&orgEdges, "staged_trial_org_edges"},
		{&drugEdges, "staged_trial_drug_edges"},
	}
	for _, q := range queries {
		if err := s.db.SelectContext(ctx, q.dest, "SELECT * FROM "+q.table+" ORDER BY seq"); err != nil {
			return nil, errors.DatabaseErrorf(err, "read %s", q.table)
		}
	}

	res := &resolver.Result{
		Trials:         make([]resolver.Trial, len(trials)),
		Organizations:  make([]resolver.Organization, len(orgs)),
		Drugs:          make([]resolver.Drug, len(drugs)),
		TrialOrgEdges:  make([]resolver.TrialOrgEdge, len(orgEdges)),
		TrialDrugEdges: make([]resolver.TrialDrugEdge, len(drugEdges)),
	}
	for i, r := range trials {
		res.Trials[i] = r.Trial
	}
	for i, r := range orgs {
		res.Organizations[i] = r.Organization
	}
	for i, r := range drugs {
		res.Drugs[i] = r.Drug
	}
	for i, r := range orgEdges {
		res.TrialOrgEdges[i] = r.TrialOrgEdge
	}
	for i, r := range drugEdges {
		res.TrialDrugEdges[i] = r.TrialDrugEdge
	}
	res.ComputeMetrics()

	s.logger.WithFields(logrus.Fields{
		"run_id": info.RunID,
		"trials": len(res.Trials),
	}).Info("Loaded staged tables")
	return res, nil
}
