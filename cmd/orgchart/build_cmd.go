package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

type buildOptions struct {
	source sourceOptions
	output string
}

type buildSummary struct {
	Status     string                `json:"status"`
	RunID      string                `json:"run_id"`
	Dataset    string                `json:"dataset,omitempty"`
	Inputs     []string              `json:"inputs,omitempty"`
	Output     string                `json:"output,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
	Normalize  record.NormalizeStats `json:"normalize"`
	Statistics hierarchy.Statistics  `json:"statistics"`
	Report     hierarchy.Report      `json:"report"`
	Notices    []string              `json:"notices"`
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the org forest and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, closeFn, err := openService(cmd.Context(), opts.source)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Refresh(ctx)
			if err != nil {
				return serviceExit(err)
			}
			if strings.TrimSpace(opts.output) != "" {
				if err := writeJSONFile(opts.output, res.Forest); err != nil {
					return err
				}
			}
			notices := res.Notices()
			if notices == nil {
				notices = []string{}
			}
			return writeJSONLine(cmd.OutOrStdout(), buildSummary{
				Status:     "built",
				RunID:      res.RunID.String(),
				Dataset:    strings.TrimSpace(opts.source.dataset),
				Inputs:     opts.source.inputs,
				Output:     opts.output,
				DurationMS: res.Duration.Milliseconds(),
				Normalize:  res.Normalize,
				Statistics: res.Forest.Statistics,
				Report:     res.Forest.Report,
				Notices:    notices,
			})
		},
	}
	opts.source.bind(cmd)
	cmd.Flags().StringVar(&opts.output, "output", "", "Write the forest JSON to this file")
	return cmd
}
