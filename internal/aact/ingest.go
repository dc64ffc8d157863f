package aact

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

const (
	archiveName   = "aact_pipe_delimited.zip"
	extractSubdir = "extracted"
)

// IngestConfig locates the extract and selects studies
type IngestConfig struct {
	DownloadURL     string
	DataDir         string
	DownloadTimeout time.Duration
	Filter          FilterCriteria
}

// Ingester downloads, unpacks and reads the registry extract
type Ingester struct {
	config IngestConfig
	client *http.Client
	logger logrus.FieldLogger
}

// NewIngester creates an ingester. A zero DownloadTimeout leaves the HTTP
// client unbounded; the caller's context still applies.
func NewIngester(config IngestConfig, logger logrus.FieldLogger) *Ingester {
	return &Ingester{
		config: config,
		client: &http.Client{Timeout: config.DownloadTimeout},
		logger: logger,
	}
}

// ExtractDir is where tables are unpacked
func (i *Ingester) ExtractDir() string {
	return filepath.Join(i.config.DataDir, extractSubdir)
}

// Download fetches the archive into DataDir and returns its path. An
// existing archive is reused unless force is set.
func (i *Ingester) Download(ctx context.Context, force bool) (string, error) {
	zipPath := filepath.Join(i.config.DataDir, archiveName)

	if _, err := os.Stat(zipPath); err == nil && !force {
		i.logger.WithField("path", zipPath).Info("Using existing extract archive")
		return zipPath, nil
	}

	url := i.config.DownloadURL
	if !strings.HasSuffix(url, ".zip") {
		return "", errors.ValidationErrorf("download URL must point at a .zip archive: %q", url)
	}

	if err := os.MkdirAll(i.config.DataDir, 0755); err != nil {
		return "", errors.FileSystemErrorf(err, "failed to create data dir %s", i.config.DataDir)
	}

	i.logger.WithField("url", url).Info("Downloading extract archive")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NetworkErrorf(err, "failed to build request for %s", url)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", downloadError(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NetworkErrorf(fmt.Errorf("unexpected status %s", resp.Status), "download of %s failed", url)
	}

	// write to a temp file so an interrupted download never looks complete
	tmp, err := os.CreateTemp(i.config.DataDir, archiveName+".*.part")
	if err != nil {
		return "", errors.FileSystemErrorf(err, "failed to create temp file in %s", i.config.DataDir)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", downloadError(err, url)
	}
	if err := os.Rename(tmp.Name(), zipPath); err != nil {
		return "", errors.FileSystemErrorf(err, "failed to move archive to %s", zipPath)
	}

	i.logger.WithFields(logrus.Fields{
		"path":     zipPath,
		"bytes":    written,
		"duration": time.Since(start).String(),
	}).Info("Downloaded extract archive")
	return zipPath, nil
}

func downloadError(err error, url string) error {
	if errors.IsDeadline(err) {
		return errors.TimeoutErrorf(err, "download of %s timed out", url)
	}
	return errors.NetworkErrorf(err, "download of %s failed", url)
}

// Extract unpacks the .txt tables of zipPath into ExtractDir. Entries that
// would land outside the directory are rejected.
func (i *Ingester) Extract(zipPath string) (string, error) {
	dir := i.ExtractDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.FileSystemErrorf(err, "failed to create %s", dir)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", errors.FileSystemErrorf(err, "invalid archive %s", zipPath)
	}
	defer zr.Close()

	count := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".txt") {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(dir, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errors.ValidationErrorf("archive entry escapes extract dir: %s", f.Name)
		}
		if err := extractFile(f, target); err != nil {
			return "", err
		}
		count++
	}

	i.logger.WithFields(logrus.Fields{
		"archive": zipPath,
		"dir":     dir,
		"tables":  count,
	}).Info("Extracted extract archive")
	return dir, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.FileSystemErrorf(err, "failed to create %s", filepath.Dir(target))
	}
	src, err := f.Open()
	if err != nil {
		return errors.FileSystemErrorf(err, "failed to open archive entry %s", f.Name)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return errors.FileSystemErrorf(err, "failed to create %s", target)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.FileSystemErrorf(err, "failed to write %s", target)
	}
	return dst.Close()
}

// DiscoverTables maps the stem of every .txt file in dir to its path.
func DiscoverTables(dir string) (map[string]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to list %s", dir)
	}
	tables := make(map[string]string, len(matches))
	for _, m := range matches {
		tables[strings.TrimSuffix(filepath.Base(m), ".txt")] = m
	}
	return tables, nil
}

// ResolveTable finds the file for name, trying the naming variants seen
// across extract releases.
func ResolveTable(dir string, tables map[string]string, name string) (string, error) {
	if path, ok := tables[name]; ok {
		return path, nil
	}
	alternatives := []string{
		name + ".txt",
		name + "_table.txt",
		name + "_data.txt",
		strings.ToUpper(name[:1]) + name[1:] + ".txt",
		strings.ToUpper(name) + ".txt",
	}
	for _, alt := range alternatives {
		path := filepath.Join(dir, alt)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	available := make([]string, 0, len(tables))
	for t := range tables {
		available = append(available, t)
	}
	sort.Strings(available)
	if len(available) > 10 {
		available = available[:10]
	}
	return "", errors.New(errors.ErrorTypeFileSystem, errors.SeverityCritical,
		fmt.Sprintf("required table %q not found in %s", name, dir)).
		WithContext("available", available)
}

// LoadTable reads one pipe-delimited table file and checks its columns.
func LoadTable(path, name string, required []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to open %s", path)
	}
	defer f.Close()

	t, err := ReadPipeTable(f, name)
	if err != nil {
		return nil, err
	}
	if err := t.RequireColumns(required...); err != nil {
		return nil, err
	}
	return t, nil
}

// Ingest produces the filtered dataset. Already-extracted tables are used
// as is; otherwise the archive is downloaded and unpacked. A failed
// download falls back to whatever tables are on disk.
func (i *Ingester) Ingest(ctx context.Context, force bool) (Dataset, error) {
	i.logger.Info("Starting extract ingestion")
	dir := i.ExtractDir()

	tables, err := DiscoverTables(dir)
	if err != nil {
		return Dataset{}, err
	}
	if len(tables) == 0 || force {
		zipPath, err := i.Download(ctx, force)
		if err == nil {
			_, err = i.Extract(zipPath)
		}
		if err != nil {
			if len(tables) == 0 {
				return Dataset{}, err
			}
			i.logger.WithError(err).Warn("Download failed, using existing extracted tables")
		}
		if tables, err = DiscoverTables(dir); err != nil {
			return Dataset{}, err
		}
	} else {
		i.logger.WithField("dir", dir).Info("Using existing extracted tables")
	}
	i.logger.WithField("tables", len(tables)).Debug("Discovered tables")

	required := map[string][]string{
		TableStudies:       {ColNCTID, ColBriefTitle, ColPhase, ColOverallStatus},
		TableSponsors:      {ColNCTID, ColName, ColAgencyClass, ColLeadOrCollaborator},
		TableInterventions: {ColNCTID, ColInterventionName, ColInterventionType},
	}
	names := []string{TableStudies, TableSponsors, TableInterventions}
	loaded := make([]*Table, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for idx, name := range names {
		idx, name := idx, name
		g.Go(func() error {
			path, err := ResolveTable(dir, tables, name)
			if err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := LoadTable(path, name, required[name])
			if err != nil {
				return err
			}
			i.logger.WithFields(logrus.Fields{
				"table": name,
				"file":  filepath.Base(path),
				"rows":  t.Len(),
			}).Info("Loaded table")
			loaded[idx] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	studies := FilterStudies(loaded[0], loaded[2], i.config.Filter, i.logger)
	ids := IDs(studies)
	ds := Dataset{
		Studies:       studies,
		Sponsors:      RestrictTo(loaded[1], ids),
		Interventions: RestrictTo(loaded[2], ids),
	}

	i.logger.WithFields(logrus.Fields{
		"studies":       ds.Studies.Len(),
		"sponsors":      ds.Sponsors.Len(),
		"interventions": ds.Interventions.Len(),
	}).Info("Ingestion complete")
	return ds, nil
}
