package pipeline

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// WriteReport writes the run summary as YAML to path, creating parent
// directories.
func (r *Result) WriteReport(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.FileSystemErrorf(err, "create report directory")
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "marshal run report")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.FileSystemErrorf(err, "write report %s", path)
	}
	return nil
}

// ReadReport loads a report written by WriteReport
func ReadReport(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "read report %s", path)
	}
	var r Result
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.ValidationErrorf("invalid report %s: %v", path, err)
	}
	return &r, nil
}
