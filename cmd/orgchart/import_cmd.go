package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
	"github.com/iota-uz/orgflow/modules/orgchart/infrastructure/persistence"
	"github.com/iota-uz/orgflow/pkg/composables"
	"github.com/iota-uz/orgflow/pkg/configuration"
)

type importOptions struct {
	inputs  []string
	sheet   string
	mapping string
	dataset string
	apply   bool
}

type importSummary struct {
	Status    string                `json:"status"`
	RunID     string                `json:"run_id"`
	Dataset   string                `json:"dataset"`
	Inputs    []string              `json:"inputs"`
	Apply     bool                  `json:"apply"`
	Normalize record.NormalizeStats `json:"normalize"`
	Written   int64                 `json:"written"`
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Normalize export files and store them as a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.inputs, "input", nil, "Input CSV/XLSX file (repeatable, required)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().StringVar(&opts.mapping, "mapping", "", "YAML field mapping (default: built-in aliases)")
	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "Target dataset name (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write to the database (default is dry-run)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, opts importOptions) error {
	opts.dataset = strings.TrimSpace(opts.dataset)
	if opts.dataset == "" {
		return withCode(exitUsage, fmt.Errorf("--dataset is required"))
	}
	if len(opts.inputs) == 0 {
		return withCode(exitUsage, fmt.Errorf("--input is required"))
	}

	normalizer, err := loadNormalizer(opts.mapping)
	if err != nil {
		return err
	}
	raws, err := readInputs(ctx, opts.inputs, opts.sheet)
	if err != nil {
		return err
	}
	recs, stats := normalizer.NormalizeAll(raws)
	if stats.Accepted == 0 {
		return withCode(exitValidation, fmt.Errorf("no usable rows: %d missing required fields, %d unsupported types", stats.MissingRequired, stats.UnsupportedKind))
	}

	summary := importSummary{
		Status:    "dry_run",
		RunID:     uuid.NewString(),
		Dataset:   opts.dataset,
		Inputs:    opts.inputs,
		Apply:     opts.apply,
		Normalize: stats,
	}
	if !opts.apply {
		return writeJSONLine(cmd.OutOrStdout(), summary)
	}

	conf := configuration.Use()
	if conf.Forest.MaxRecords > 0 && len(recs) > conf.Forest.MaxRecords {
		return withCode(exitValidation, fmt.Errorf("%d records exceed FOREST_MAX_RECORDS=%d", len(recs), conf.Forest.MaxRecords))
	}
	pool, err := connectDB(ctx, conf)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	written, err := persistence.NewRecordRepository().ReplaceDataset(composables.WithPool(ctx, pool), opts.dataset, recs)
	if err != nil {
		return withCode(exitDBWrite, err)
	}
	if logger := composables.UseLogger(ctx); logger != nil {
		logger.WithFields(logrus.Fields{
			"run_id":  summary.RunID,
			"dataset": opts.dataset,
			"written": written,
			"dropped": stats.Dropped(),
		}).Info("orgchart.import.applied")
	}
	summary.Status = "applied"
	summary.Written = written
	return writeJSONLine(cmd.OutOrStdout(), summary)
}
