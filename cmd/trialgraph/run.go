package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/trialgraph/internal/aact"
	"github.com/rohankatakam/trialgraph/internal/config"
	"github.com/rohankatakam/trialgraph/internal/graph"
	"github.com/rohankatakam/trialgraph/internal/pipeline"
	"github.com/rohankatakam/trialgraph/internal/staging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest, resolve, stage and load in one pass",
	Long: `Run the whole pipeline: download or reuse the AACT extract, filter studies,
resolve organizations and drugs, stage the result and load it into Neo4j.

Examples:
  trialgraph run
  trialgraph run --force-download
  trialgraph run --skip-schema --report out/report.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, config.ValidationContextRun, pipeline.Options{Transform: true, Load: true})
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Ingest and resolve, then stage the result",
	Long: `Ingest and resolve the extract without touching Neo4j. The result is
written to the staging store for a later 'trialgraph load'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, config.ValidationContextTransform, pipeline.Options{Transform: true})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the staged result into Neo4j",
	Long:  `Load the result staged by 'trialgraph transform' into Neo4j.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, config.ValidationContextLoad, pipeline.Options{Load: true})
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, transformCmd} {
		c.Flags().Bool("force-download", false, "download the extract even if a copy exists")
	}
	for _, c := range []*cobra.Command{runCmd, loadCmd} {
		c.Flags().Bool("skip-schema", false, "do not create constraints and indexes before loading")
		c.Flags().Int("batch-size", 0, "rows per transaction (overrides BATCH_SIZE)")
	}
	for _, c := range []*cobra.Command{runCmd, transformCmd, loadCmd} {
		c.Flags().String("report", "", "write the run report to this path (overrides report_path)")
	}
}

func runPipeline(cmd *cobra.Command, vctx config.ValidationContext, opts pipeline.Options) error {
	ctx, stop := commandContext()
	defer stop()

	if cmd.Flags().Lookup("batch-size") != nil {
		if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
			cfg.Load.BatchSize = n
		}
	}
	if err := validateConfig(vctx); err != nil {
		return err
	}

	if cmd.Flags().Lookup("force-download") != nil {
		opts.ForceDownload, _ = cmd.Flags().GetBool("force-download")
	}
	if opts.Load {
		skip, _ := cmd.Flags().GetBool("skip-schema")
		opts.SetupSchema = cfg.Load.SetupSchema && !skip
	}

	store, err := openStaging(!opts.Transform)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var exec graph.Executor
	if opts.Load {
		client, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer client.Close(context.Background())
		exec = client.Executor()
	}

	orchestrator := pipeline.NewOrchestrator(cfg, newIngester(), store, exec, logger)
	result, runErr := orchestrator.Run(ctx, opts)

	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath == "" {
		reportPath = cfg.ReportPath
	}
	if reportPath != "" && result != nil {
		if err := result.WriteReport(reportPath); err != nil {
			logger.WithError(err).Warn("Failed to write run report")
		} else {
			logger.WithField("path", reportPath).Info("Run report written")
		}
	}
	if runErr != nil {
		return runErr
	}

	printSummary(result)
	return nil
}

func validateConfig(vctx config.ValidationContext) error {
	result := cfg.Validate(vctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.Err()
}

func newIngester() *aact.Ingester {
	return aact.NewIngester(aact.IngestConfig{
		DownloadURL:     cfg.Source.DownloadURL,
		DataDir:         cfg.Source.DataDir,
		DownloadTimeout: cfg.Source.DownloadTimeout,
		Filter: aact.FilterCriteria{
			Phases:     cfg.Filter.Phases,
			Statuses:   cfg.Filter.Statuses,
			MinStudies: cfg.Filter.MinStudies,
		},
	}, logger)
}

// openStaging returns nil when staging is disabled and not required
func openStaging(required bool) (staging.Store, error) {
	if !required && (cfg.Staging.Type == "none" || cfg.Staging.Type == "") {
		return nil, nil
	}
	return staging.Open(cfg.Staging, logger)
}

func connectGraph(ctx context.Context) (*graph.Client, error) {
	return graph.NewClient(ctx, graph.ClientConfig{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	}, logger)
}

func printSummary(result *pipeline.Result) {
	m := result.Metrics
	fmt.Printf("Run %s complete in %s (stages: %v)\n", result.RunID, result.Duration.Round(time.Millisecond), result.Stages)
	fmt.Printf("  Trials:            %d\n", m.Trials)
	fmt.Printf("  Organizations:     %d\n", m.Organizations)
	fmt.Printf("  Drugs:             %d\n", m.Drugs)
	fmt.Printf("  Trial-org edges:   %d\n", m.TrialOrgEdges)
	fmt.Printf("  Trial-drug edges:  %d\n", m.TrialDrugEdges)
	fmt.Printf("  Route coverage:    %.1f%%\n", m.PctTrialsWithRoute)
	fmt.Printf("  Dosage coverage:   %.1f%%\n", m.PctTrialsWithDosageForm)

	if result.Load == nil {
		return
	}
	for _, gap := range result.Load.Gaps() {
		fmt.Printf("  ⚠️  %s: %d of %d rows not applied\n", gap.Kind, gap.Stats.Gap(), gap.Stats.Requested)
	}
}
