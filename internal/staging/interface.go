// Package staging persists the resolved tables between the transform and
// load stages.
package staging

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/config"
	"github.com/rohankatakam/trialgraph/internal/errors"
	"github.com/rohankatakam/trialgraph/internal/resolver"
)

// ErrNotFound means nothing has been staged yet
var ErrNotFound = stderrors.New("no staged result")

// RunInfo describes the staged projection
type RunInfo struct {
	RunID   string    `db:"run_id" yaml:"run_id"`
	SavedAt time.Time `db:"saved_at" yaml:"saved_at"`
}

// Store holds exactly one staged result. Saving replaces the previous one
// atomically.
type Store interface {
	SaveResult(ctx context.Context, runID string, result *resolver.Result) error
	LoadResult(ctx context.Context) (*resolver.Result, error)
	LastRun(ctx context.Context) (*RunInfo, error)
	Close() error
}

// Open returns the store selected by cfg.Type.
func Open(cfg config.StagingConfig, logger logrus.FieldLogger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		store, err := NewSQLiteStore(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStore(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "none", "":
		return nil, errors.ConfigErrorf("staging is disabled")
	default:
		return nil, errors.ConfigErrorf("unknown staging type %q", cfg.Type)
	}
}
