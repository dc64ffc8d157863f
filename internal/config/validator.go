package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/trialgraph/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextTransform - ingest + transform, no graph store
	ValidationContextTransform ValidationContext = "transform"
	// ValidationContextLoad - loading requires Neo4j and a staging store
	ValidationContextLoad ValidationContext = "load"
	// ValidationContextRun - the full pipeline
	ValidationContextRun ValidationContext = "run"
	// ValidationContextSchema - schema bootstrap only needs Neo4j
	ValidationContextSchema ValidationContext = "schema"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Err converts a failed result into a config error, nil otherwise.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigErrorf("%s", strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextTransform:
		c.validateSource(result)
		c.validateFilter(result)
		c.validateStaging(result, false)
	case ValidationContextLoad:
		c.validateNeo4j(result)
		c.validateLoad(result)
		c.validateStaging(result, true)
	case ValidationContextSchema:
		c.validateNeo4j(result)
	case ValidationContextRun:
		c.validateSource(result)
		c.validateFilter(result)
		c.validateStaging(result, false)
		c.validateNeo4j(result)
		c.validateLoad(result)
	}

	return result
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if c.Neo4j.URI == "" {
		result.AddError("NEO4J_URI must be set")
	} else if u, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	} else if u.Scheme == "" {
		result.AddError("NEO4J_URI has no scheme: %s", c.Neo4j.URI)
	}

	if c.Neo4j.User == "" {
		result.AddError("NEO4J_USER must be set")
	}
	if c.Neo4j.Password == "" {
		result.AddError("NEO4J_PASSWORD must be set")
	} else if c.Neo4j.Password == "password" || c.Neo4j.Password == "neo4j" {
		result.AddWarning("NEO4J_PASSWORD is set to a very common password (%s)", c.Neo4j.Password)
	}

	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, will use 'neo4j'")
	}
}

func (c *Config) validateLoad(result *ValidationResult) {
	if c.Load.BatchSize < 1 {
		result.AddError("BATCH_SIZE must be >= 1, got %d", c.Load.BatchSize)
	}
	if c.Load.BatchTimeout <= 0 {
		result.AddWarning("load.batch_timeout is not set, batches are bounded only by the driver")
	}
}

func (c *Config) validateSource(result *ValidationResult) {
	if c.Source.DataDir == "" {
		result.AddError("AACT_DATA_DIR must be set")
	}
	if c.Source.DownloadURL != "" {
		if _, err := url.Parse(c.Source.DownloadURL); err != nil {
			result.AddError("AACT_DOWNLOAD_URL is invalid: %v", err)
		}
	}
	if c.Source.DownloadTimeout <= 0 {
		result.AddWarning("source.download_timeout is not set, downloads are unbounded")
	}
}

func (c *Config) validateFilter(result *ValidationResult) {
	if c.Filter.MinStudies < 1 {
		result.AddError("MIN_STUDIES must be >= 1, got %d", c.Filter.MinStudies)
	}
	if len(c.Filter.Phases) == 0 {
		result.AddError("PHASES must list at least one phase")
	}
	if len(c.Filter.Statuses) == 0 {
		result.AddError("STATUS_LIST must list at least one status")
	}
}

func (c *Config) validateStaging(result *ValidationResult, required bool) {
	switch c.Staging.Type {
	case "sqlite":
		if c.Staging.Path == "" {
			result.AddError("STAGING_PATH must be set for sqlite staging")
		}
	case "postgres":
		if c.Staging.DSN == "" {
			result.AddError("STAGING_DSN must be set for postgres staging")
		} else if !strings.HasPrefix(c.Staging.DSN, "postgres://") && !strings.HasPrefix(c.Staging.DSN, "postgresql://") {
			result.AddError("STAGING_DSN must start with postgres:// or postgresql://")
		}
	case "none", "":
		if required {
			result.AddError("a staging store is required to load without transforming")
		}
	default:
		result.AddError("unknown STAGING_TYPE %q (want sqlite, postgres or none)", c.Staging.Type)
	}
}
