package main

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgflow/migrations"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := migrations.All()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := connectDB(ctx, configuration.Use())
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			applied := make([]string, 0, len(ms))
			for i := range ms {
				m := ms[i]
				sql := m.Up
				if down {
					m = ms[len(ms)-1-i]
					sql = m.Down
				}
				if sql == "" {
					continue
				}
				if _, err := pool.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol); err != nil {
					return withCode(exitDBWrite, fmt.Errorf("%s: %w", m.Name, err))
				}
				applied = append(applied, m.Name)
			}
			direction := "up"
			if down {
				direction = "down"
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"direction": direction, "applied": applied})
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll migrations back instead")
	return cmd
}
