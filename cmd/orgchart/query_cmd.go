package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
)

type searchResult struct {
	Term        string             `json:"term"`
	Kind        string             `json:"kind"`
	Hits        []hierarchy.Entity `json:"hits"`
	Suggestions []hierarchy.Entity `json:"suggestions,omitempty"`
}

func newSearchCmd() *cobra.Command {
	var (
		source sourceOptions
		kind   string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search TERM",
		Short: "Find organizations or positions by name or holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := hierarchy.ParseSearchKind(kind)
			if err != nil {
				return withCode(exitUsage, err)
			}
			term := strings.TrimSpace(args[0])
			if term == "" {
				return withCode(exitUsage, fmt.Errorf("search term is required"))
			}

			svc, ctx, closeFn, err := openService(cmd.Context(), source)
			if err != nil {
				return err
			}
			defer closeFn()

			hits, err := svc.Search(ctx, term, k)
			if err != nil {
				return serviceExit(err)
			}
			out := searchResult{Term: term, Kind: strings.ToLower(strings.TrimSpace(kind)), Hits: hits}
			if out.Hits == nil {
				out.Hits = []hierarchy.Entity{}
			}
			if len(hits) > limit && limit > 0 {
				out.Hits = hits[:limit]
			}
			if len(hits) == 0 {
				out.Suggestions, err = svc.Suggest(ctx, term, 5)
				if err != nil {
					return serviceExit(err)
				}
			}
			return writeJSONLine(cmd.OutOrStdout(), out)
		},
	}
	source.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", "any", "Entity kind: org|position|any")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of hits (0: all)")
	return cmd
}

func newChildrenCmd() *cobra.Command {
	var (
		source     sourceOptions
		assignable bool
	)

	cmd := &cobra.Command{
		Use:   "children ID",
		Short: "Show one level below an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, closeFn, err := openService(cmd.Context(), source)
			if err != nil {
				return err
			}
			defer closeFn()

			if assignable {
				positions, err := svc.AssignablePositions(ctx, args[0])
				if err != nil {
					return serviceExit(err)
				}
				return writeJSONLine(cmd.OutOrStdout(), map[string]any{
					"node_id":   strings.TrimSpace(args[0]),
					"positions": positions,
				})
			}
			exp, err := svc.ChildrenOf(ctx, args[0])
			if err != nil {
				return serviceExit(err)
			}
			return writeJSONLine(cmd.OutOrStdout(), exp)
		},
	}
	source.bind(cmd)
	cmd.Flags().BoolVar(&assignable, "assignable", false, "List only filled positions that can be selected for an action")
	return cmd
}
