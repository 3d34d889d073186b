package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgflow/modules/orgchart/infrastructure/persistence"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List stored datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connectDB(ctx, configuration.Use())
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			infos, err := persistence.NewRecordRepository().ListDatasets(composables.WithPool(ctx, pool))
			if err != nil {
				return withCode(exitDB, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"datasets": infos})
		},
	}
}
