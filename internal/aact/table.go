// Package aact models the registry extract as string-typed tables and reads
// the pipe-delimited export.
package aact

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// Table names in the extract
const (
	TableStudies       = "studies"
	TableSponsors      = "sponsors"
	TableInterventions = "interventions"
)

// Column names used by the pipeline
const (
	ColNCTID              = "nct_id"
	ColID                 = "id"
	ColBriefTitle         = "brief_title"
	ColPhase              = "phase"
	ColOverallStatus      = "overall_status"
	ColStartDate          = "start_date"
	ColCompletionDate     = "completion_date"
	ColStudyType          = "study_type"
	ColName               = "name"
	ColAgencyClass        = "agency_class"
	ColLeadOrCollaborator = "lead_or_collaborator"
	ColInterventionName   = "intervention_name"
	ColInterventionType   = "intervention_type"
)

// RequiredColumns are checked before any row is processed.
var RequiredColumns = map[string][]string{
	TableStudies:       {ColNCTID},
	TableSponsors:      {ColNCTID, ColName},
	TableInterventions: {ColNCTID, ColInterventionName, ColInterventionType},
}

// Row is one record keyed by column name. A column that is absent or null
// reads as "".
type Row map[string]string

// Get returns the value of col, or "" when it is missing.
func (r Row) Get(col string) string {
	return r[col]
}

// Table is a named set of rows sharing one header.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewTable builds a table from a header and positional records.
func NewTable(name string, columns []string, records ...[]string) *Table {
	t := &Table{Name: name, Columns: columns}
	for _, rec := range records {
		t.Rows = append(t.Rows, rowFromRecord(columns, rec))
	}
	return t
}

func rowFromRecord(columns, rec []string) Row {
	row := make(Row, len(columns))
	for i, col := range columns {
		if i < len(rec) {
			row[col] = rec[i]
		}
	}
	return row
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether col is in the header.
func (t *Table) HasColumn(col string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// HasColumns reports whether every col is in the header.
func (t *Table) HasColumns(cols ...string) bool {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return false
		}
	}
	return true
}

// RequireColumns fails with a schema error naming every missing column.
func (t *Table) RequireColumns(cols ...string) error {
	name := "<nil>"
	if t != nil {
		name = t.Name
	}
	var missing []string
	for _, c := range cols {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return errors.SchemaError(name, missing)
	}
	return nil
}

// Filter returns a table with the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Dataset is the three-table input to entity resolution.
type Dataset struct {
	Studies       *Table
	Sponsors      *Table
	Interventions *Table
}

// Validate checks every table against RequiredColumns.
func (d Dataset) Validate() error {
	checks := []struct {
		name  string
		table *Table
	}{
		{TableStudies, d.Studies},
		{TableSponsors, d.Sponsors},
		{TableInterventions, d.Interventions},
	}
	for _, c := range checks {
		if c.table == nil {
			return errors.SchemaError(c.name, RequiredColumns[c.name])
		}
		if err := c.table.RequireColumns(RequiredColumns[c.name]...); err != nil {
			return err
		}
	}
	return nil
}

// ReadPipeTable parses a pipe-delimited export with a header line. Every
// value stays a string; short rows leave trailing columns empty.
func ReadPipeTable(r io.Reader, name string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '|'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.ValidationErrorf("table %s is empty", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	t := &Table{Name: name, Columns: header}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t.Rows = append(t.Rows, rowFromRecord(header, rec))
	}
	return t, nil
}
