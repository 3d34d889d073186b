package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

// sourceOptions selects where raw rows come from: files or a stored dataset.
type sourceOptions struct {
	inputs    []string
	sheet     string
	mapping   string
	dataset   string
	maxPasses int
}

func (o *sourceOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.inputs, "input", nil, "Input CSV/XLSX file (repeatable)")
	cmd.Flags().StringVar(&o.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().StringVar(&o.mapping, "mapping", "", "YAML field mapping (default: built-in aliases)")
	cmd.Flags().StringVar(&o.dataset, "dataset", "", "Read rows from this stored dataset instead of files")
	cmd.Flags().IntVar(&o.maxPasses, "max-passes", 0, "Resolution pass bound (default: FOREST_MAX_PASSES or 64)")
}

func (o *sourceOptions) validate() error {
	hasFiles := len(o.inputs) > 0
	hasDataset := strings.TrimSpace(o.dataset) != ""
	switch {
	case hasFiles && hasDataset:
		return withCode(exitUsage, fmt.Errorf("--input and --dataset are mutually exclusive"))
	case !hasFiles && !hasDataset:
		return withCode(exitUsage, fmt.Errorf("either --input or --dataset is required"))
	case hasDataset && o.mapping != "":
		return withCode(exitUsage, fmt.Errorf("--mapping applies to file inputs only"))
	}
	if o.maxPasses < 0 {
		return withCode(exitUsage, fmt.Errorf("--max-passes must not be negative"))
	}
	return nil
}

// readInputs reads every file concurrently and concatenates rows in argument order.
func readInputs(ctx context.Context, paths []string, sheet string) ([]map[string]string, error) {
	results := make([][]map[string]string, len(paths))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			rows, err := readInputFile(p, sheet)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]map[string]string, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func readInputFile(path, sheet string) ([]map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, withCode(exitUsage, err)
	}
	var (
		rows []map[string]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = readCSVRows(path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSXRows(path, sheet)
	default:
		return nil, withCode(exitUsage, fmt.Errorf("%s: unsupported input format", path))
	}
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	return rows, nil
}

func loadNormalizer(path string) (*record.Normalizer, error) {
	if strings.TrimSpace(path) == "" {
		return record.DefaultNormalizer(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("open mapping: %w", err))
	}
	defer func() { _ = f.Close() }()

	m, err := record.LoadFieldMapping(f)
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("%s: %w", path, err))
	}
	n, err := record.NewNormalizer(m)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	return n, nil
}
