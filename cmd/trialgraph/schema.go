package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/trialgraph/internal/config"
	"github.com/rohankatakam/trialgraph/internal/graph"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create graph constraints and indexes",
	Long: `Create the uniqueness constraints on Trial.nct_id, Organization.org_id and
Drug.drug_id plus the lookup indexes. Existing definitions are left alone.`,
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	if err := validateConfig(config.ValidationContextSchema); err != nil {
		return err
	}

	client, err := connectGraph(ctx)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	result, err := graph.SetupSchema(ctx, client.Executor(), nil, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Schema: %d statements applied, %d skipped\n", result.Applied, result.Failed)
	return nil
}
