package aact

import (
	"archive/zip"
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/trialgraph/internal/errors"
	"github.com/rohankatakam/trialgraph/internal/logging"
)

const studiesTxt = `nct_id|brief_title|phase|overall_status
NCT001|Aspirin study|Phase 2|RECRUITING
NCT002|No interventions|Phase 3|COMPLETED
NCT003|Withdrawn|Phase 2|WITHDRAWN
NCT004|No phase||COMPLETED
NCT005|Observational "quoted|Phase 1|COMPLETED
`

const sponsorsTxt = `nct_id|name|agency_class|lead_or_collaborator
NCT001|Pfizer Inc.|INDUSTRY|lead
NCT003|Acme|OTHER|lead
NCT005|NIH|NIH|collaborator
`

const interventionsTxt = `id|nct_id|intervention_name|intervention_type
1|NCT001|Aspirin oral tablet|Drug
2|NCT003|Placebo|Drug
3|NCT004|Saline|Drug
4|NCT005|Vitamin D|Dietary Supplement
`

func TestReadPipeTable(t *testing.T) {
	table, err := ReadPipeTable(strings.NewReader(studiesTxt), TableStudies)
	require.NoError(t, err)

	assert.Equal(t, []string{"nct_id", "brief_title", "phase", "overall_status"}, table.Columns)
	require.Equal(t, 5, table.Len())
	assert.Equal(t, "Aspirin study", table.Rows[0].Get(ColBriefTitle))
	assert.Equal(t, "", table.Rows[3].Get(ColPhase))
	assert.Equal(t, `Observational "quoted`, table.Rows[4].Get(ColBriefTitle))
	assert.Equal(t, "", table.Rows[0].Get("not_a_column"))
}

func TestReadPipeTableRaggedRows(t *testing.T) {
	table, err := ReadPipeTable(strings.NewReader("a|b|c\n1|2\n"), "t")
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "2", table.Rows[0].Get("b"))
	assert.Equal(t, "", table.Rows[0].Get("c"))
}

func TestReadPipeTableStripsBOM(t *testing.T) {
	table, err := ReadPipeTable(strings.NewReader("\ufeffnct_id|name\nNCT1|Acme\n"), TableSponsors)
	require.NoError(t, err)

	require.Len(t, table.Columns, 2)
	assert.Equal(t, "nct_id", table.Columns[0])
	assert.True(t, table.HasColumn(ColNCTID))
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "NCT1", table.Rows[0].Get(ColNCTID))
}

func TestReadPipeTableEmpty(t *testing.T) {
	_, err := ReadPipeTable(strings.NewReader(""), "t")
	assert.True(t, stderrors.Is(err, errors.Validation))
}

func TestRequireColumns(t *testing.T) {
	table := NewTable(TableSponsors, []string{"nct_id"})
	assert.False(t, table.HasColumns(ColNCTID, ColName))

	err := table.RequireColumns(ColNCTID, ColName)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Schema))
	assert.Contains(t, err.Error(), "name")

	assert.NoError(t, table.RequireColumns(ColNCTID))
}

func TestDatasetValidate(t *testing.T) {
	ds := Dataset{
		Studies:       NewTable(TableStudies, []string{ColNCTID}),
		Sponsors:      NewTable(TableSponsors, []string{ColNCTID, ColName}),
		Interventions: NewTable(TableInterventions, []string{ColNCTID, ColInterventionName}),
	}
	err := ds.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interventions")

	ds.Sponsors = nil
	assert.True(t, stderrors.Is(ds.Validate(), errors.Schema))
}

func TestFilterStudies(t *testing.T) {
	studies, err := ReadPipeTable(strings.NewReader(studiesTxt), TableStudies)
	require.NoError(t, err)
	interventions, err := ReadPipeTable(strings.NewReader(interventionsTxt), TableInterventions)
	require.NoError(t, err)

	criteria := FilterCriteria{
		Phases:     []string{"Phase 1", "Phase 2"},
		Statuses:   []string{"RECRUITING", "COMPLETED"},
		MinStudies: 10,
	}
	filtered := FilterStudies(studies, interventions, criteria, logging.Discard())

	ids := IDs(filtered)
	assert.Equal(t, map[string]bool{"NCT001": true, "NCT005": true}, ids)
}

func writeTables(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
}

func testIngester(dataDir, url string) *Ingester {
	return NewIngester(IngestConfig{
		DownloadURL:     url,
		DataDir:         dataDir,
		DownloadTimeout: time.Second,
		Filter: FilterCriteria{
			Phases:     []string{"Phase 1", "Phase 2"},
			Statuses:   []string{"RECRUITING", "COMPLETED"},
			MinStudies: 1,
		},
	}, logging.Discard())
}

func TestIngestUsesExtractedTables(t *testing.T) {
	dataDir := t.TempDir()
	ing := testIngester(dataDir, "http://127.0.0.1:1/unused.zip")
	writeTables(t, ing.ExtractDir(), map[string]string{
		"studies.txt":             studiesTxt,
		"Sponsors.txt":            sponsorsTxt,
		"interventions_table.txt": interventionsTxt,
	})

	ds, err := ing.Ingest(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Studies.Len())
	// sponsors and interventions restricted to the kept studies
	assert.Equal(t, 2, ds.Sponsors.Len())
	assert.Equal(t, 2, ds.Interventions.Len())
	for _, r := range ds.Interventions.Rows {
		assert.Contains(t, []string{"NCT001", "NCT005"}, r.Get(ColNCTID))
	}
}

func TestIngestMissingTable(t *testing.T) {
	dataDir := t.TempDir()
	ing := testIngester(dataDir, "http://127.0.0.1:1/unused.zip")
	writeTables(t, ing.ExtractDir(), map[string]string{
		"studies.txt":  studiesTxt,
		"sponsors.txt": sponsorsTxt,
	})

	_, err := ing.Ingest(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeFileSystem, errors.GetType(err))
	assert.Contains(t, err.Error(), "interventions")
}

func TestIngestMissingColumns(t *testing.T) {
	dataDir := t.TempDir()
	ing := testIngester(dataDir, "http://127.0.0.1:1/unused.zip")
	writeTables(t, ing.ExtractDir(), map[string]string{
		"studies.txt":       studiesTxt,
		"sponsors.txt":      "nct_id|name\nNCT001|Pfizer\n",
		"interventions.txt": interventionsTxt,
	})

	_, err := ing.Ingest(context.Background(), false)
	assert.True(t, stderrors.Is(err, errors.Schema))
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDownloadAndExtract(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"studies.txt":       studiesTxt,
		"sponsors.txt":      sponsorsTxt,
		"interventions.txt": interventionsTxt,
		"README.md":         "ignored",
	})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	dataDir := t.TempDir()
	ing := testIngester(dataDir, srv.URL+"/export.zip")

	ds, err := ing.Ingest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Studies.Len())
	assert.EqualValues(t, 1, hits.Load())

	tables, err := DiscoverTables(ing.ExtractDir())
	require.NoError(t, err)
	assert.Len(t, tables, 3)

	// archive on disk is reused unless forced
	_, err = ing.Download(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	_, err = ing.Download(context.Background(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestDownloadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ing := NewIngester(IngestConfig{
		DownloadURL:     srv.URL + "/export.zip",
		DataDir:         t.TempDir(),
		DownloadTimeout: 50 * time.Millisecond,
	}, logging.Discard())

	_, err := ing.Download(context.Background(), false)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Timeout), err.Error())
}

func TestDownloadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	ing := testIngester(t.TempDir(), srv.URL+"/export.zip")
	_, err := ing.Download(context.Background(), false)
	assert.True(t, stderrors.Is(err, errors.Network))
}

func TestExtractRejectsTraversal(t *testing.T) {
	dataDir := t.TempDir()
	zipPath := filepath.Join(dataDir, "evil.zip")
	require.NoError(t, os.WriteFile(zipPath, buildZip(t, map[string]string{
		"../../escape.txt": "nct_id\n",
	}), 0644))

	ing := testIngester(dataDir, "")
	_, err := ing.Extract(zipPath)
	require.Error(t, err)
	// newer archive readers refuse the entry before it is ever listed
	assert.Contains(t, []errors.ErrorType{errors.ErrorTypeValidation, errors.ErrorTypeFileSystem}, errors.GetType(err))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dataDir), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
