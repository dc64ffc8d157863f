package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/trialgraph/internal/config"
	"github.com/rohankatakam/trialgraph/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and connectivity",
	Long: `Validate the configuration for a full run. With --connect, also verify that
Neo4j is reachable and report what the staging store holds.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("connect", false, "also connect to Neo4j and compare it with the staging store")
	validateCmd.Flags().Float64("threshold", validation.DefaultThreshold, "minimum graph/staged ratio in percent")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()
	connect, _ := cmd.Flags().GetBool("connect")

	result := cfg.Validate(config.ValidationContextRun)
	for _, w := range result.Warnings {
		fmt.Printf("  ⚠️  %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Printf("  ❌ %s\n", e)
	}
	if err := result.Err(); err != nil {
		return err
	}
	fmt.Println("Configuration: ✅ valid")

	if !connect {
		return nil
	}

	client, err := connectGraph(ctx)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())
	if err := client.HealthCheck(ctx); err != nil {
		return err
	}
	fmt.Printf("Neo4j: ✅ %s\n", cfg.Neo4j.URI)

	store, err := openStaging(false)
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Println("Staging: disabled")
		return nil
	}
	defer store.Close()

	info, err := store.LastRun(ctx)
	if err != nil {
		fmt.Printf("Staging: ✅ %s (empty)\n", cfg.Staging.Type)
		return nil
	}
	fmt.Printf("Staging: ✅ %s (run %s, saved %s)\n", cfg.Staging.Type, info.RunID, info.SavedAt.Format("2006-01-02 15:04:05"))

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	results, err := validation.NewConsistencyValidator(store, client.Executor(), threshold, logger).ValidateStaged(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\nStaged vs graph:")
	for _, r := range results {
		mark := "✅"
		if !r.Passed {
			mark = "❌"
		}
		fmt.Printf("  %s %-18s staged=%d graph=%d (%.1f%%)\n", mark, r.Kind, r.StagedCount, r.GraphCount, r.SyncPercent)
	}
	if !validation.AllPassed(results) {
		return fmt.Errorf("graph is out of sync with the staged result")
	}
	return nil
}
