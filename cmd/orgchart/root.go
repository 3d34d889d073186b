package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/logging"
	"github.com/iota-uz/orgflow/pkg/metrics"
)

func newRootCmd() *cobra.Command {
	var (
		logLevel    string
		logFile     string
		metricsFile string
		closeLog    = func() {}
	)

	cmd := &cobra.Command{
		Use:           "orgchart",
		Short:         "Rebuild, inspect and store org charts from flat HR exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			level := logging.ParseLevel(logLevel)
			logger := logging.ConsoleLogger(level)
			if logFile != "" {
				f, fl, err := logging.FileLogger(level, logFile)
				if err != nil {
					return withCode(exitUsage, fmt.Errorf("open log file: %w", err))
				}
				logger, closeLog = fl, func() { _ = f.Close() }
			}
			cmd.SetContext(composables.WithLogger(ctx, logrus.NewEntry(logger)))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			defer closeLog()
			if metricsFile == "" {
				return nil
			}
			if err := metrics.WriteTextfile(metricsFile, nil); err != nil {
				return withCode(exitIO, fmt.Errorf("write metrics: %w", err))
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: silent|error|warn|info|debug")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append JSON logs to this file instead of stderr")
	cmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on success")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newChildrenCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newDatasetsCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
