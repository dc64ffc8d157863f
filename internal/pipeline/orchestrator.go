// Package pipeline runs ingest, resolve, stage and load as one run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/trialgraph/internal/aact"
	"github.com/rohankatakam/trialgraph/internal/config"
	"github.com/rohankatakam/trialgraph/internal/errors"
	"github.com/rohankatakam/trialgraph/internal/graph"
	"github.com/rohankatakam/trialgraph/internal/loader"
	"github.com/rohankatakam/trialgraph/internal/resolver"
	"github.com/rohankatakam/trialgraph/internal/staging"
)

// Source yields the filtered dataset
type Source interface {
	Ingest(ctx context.Context, force bool) (aact.Dataset, error)
}

// Options select the stages of a run
type Options struct {
	// Transform ingests and resolves; otherwise the staged result is loaded
	Transform bool
	// Load writes into the graph store
	Load          bool
	ForceDownload bool
	SetupSchema   bool
}

// Result is the run summary written to the report
type Result struct {
	RunID     string              `yaml:"run_id"`
	StartedAt time.Time           `yaml:"started_at"`
	Duration  time.Duration       `yaml:"duration"`
	Stages    []string            `yaml:"stages"`
	Metrics   resolver.Metrics    `yaml:"metrics"`
	Schema    *graph.SchemaResult `yaml:"schema,omitempty"`
	Load      *loader.Report      `yaml:"load,omitempty"`
	StagedRun *staging.RunInfo    `yaml:"staged_run,omitempty"`
}

// Orchestrator coordinates one pipeline run. store and exec may be nil
// when the selected stages do not need them.
type Orchestrator struct {
	config *config.Config
	source Source
	store  staging.Store
	exec   graph.Executor
	logger logrus.FieldLogger
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(
	cfg *config.Config,
	source Source,
	store staging.Store,
	exec graph.Executor,
	logger logrus.FieldLogger,
) *Orchestrator {
	return &Orchestrator{
		config: cfg,
		source: source,
		store:  store,
		exec:   exec,
		logger: logger,
	}
}

// Run executes the selected stages strictly in order. Any stage error
// aborts the run; the partial result is still returned.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.WithField("run_id", result.RunID)
	logger.WithFields(logrus.Fields{
		"transform": opts.Transform,
		"load":      opts.Load,
	}).Info("Starting pipeline run")

	res, err := o.resolve(ctx, logger, opts, result)
	if err != nil {
		return result, err
	}
	result.Metrics = res.Metrics

	if opts.Load {
		if err := o.load(ctx, logger, opts, res, result); err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(result.StartedAt)
	logger.WithFields(logrus.Fields{
		"stages":           result.Stages,
		"trials":           result.Metrics.Trials,
		"organizations":    result.Metrics.Organizations,
		"drugs":            result.Metrics.Drugs,
		"trial_org_edges":  result.Metrics.TrialOrgEdges,
		"trial_drug_edges": result.Metrics.TrialDrugEdges,
		"duration":         result.Duration.String(),
	}).Info("Pipeline run complete")
	return result, nil
}

func (o *Orchestrator) resolve(ctx context.Context, logger logrus.FieldLogger, opts Options, result *Result) (*resolver.Result, error) {
	if !opts.Transform {
		if o.store == nil {
			return nil, errors.ConfigErrorf("loading without transforming needs a staging store")
		}
		res, err := o.store.LoadResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("read staged result: %w", err)
		}
		if info, err := o.store.LastRun(ctx); err == nil {
			result.StagedRun = info
		}
		result.Stages = append(result.Stages, "read_staged")
		return res, nil
	}

	ds, err := o.source.Ingest(ctx, opts.ForceDownload)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	result.Stages = append(result.Stages, "ingest")

	res, err := resolver.New(logger).Resolve(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	result.Stages = append(result.Stages, "resolve")

	if o.store != nil {
		if err := o.store.SaveResult(ctx, result.RunID, res); err != nil {
			return nil, fmt.Errorf("stage: %w", err)
		}
		result.Stages = append(result.Stages, "stage")
	}
	return res, nil
}

func (o *Orchestrator) load(ctx context.Context, logger logrus.FieldLogger, opts Options, res *resolver.Result, result *Result) error {
	if o.exec == nil {
		return errors.ConfigErrorf("loading needs a graph connection")
	}
	metadata := map[string]any{"run_id": result.RunID}

	if opts.SetupSchema {
		schema, err := graph.SetupSchema(ctx, o.exec, metadata, logger)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		result.Schema = &schema
		result.Stages = append(result.Stages, "schema")
	}

	batchConfig := graph.DefaultBatchConfig()
	batchConfig.BatchSize = o.config.Load.BatchSize
	batchConfig.Timeout = o.config.Load.BatchTimeout
	batchConfig.Metadata = metadata

	report, err := loader.New(o.exec, batchConfig, logger).Load(ctx, res, loader.Options{
		BatchSize: o.config.Load.BatchSize,
		Reconcile: true,
	})
	result.Load = report
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	result.Stages = append(result.Stages, "load")
	return nil
}
