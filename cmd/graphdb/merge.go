package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Match-or-create nodes and edges",
}

var mergeNodeCmd = &cobra.Command{
	Use:   "node <type>",
	Short: "Merge a node: update it if a match exists, otherwise create it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		match, _ := cmd.Flags().GetString("match")
		onCreate, _ := cmd.Flags().GetString("on-create")
		onMatch, _ := cmd.Flags().GetString("on-match")

		matchProps, err := parseProperties(match)
		if err != nil {
			return err
		}
		onCreateProps, err := parseProperties(onCreate)
		if err != nil {
			return err
		}
		onMatchProps, err := parseProperties(onMatch)
		if err != nil {
			return err
		}

		result, err := app.DB.MergeNode(cmd.Context(), graph.MergeNodeOptions{
			Type:     args[0],
			Match:    matchProps,
			OnCreate: onCreateProps,
			OnMatch:  onMatchProps,
		})
		if err != nil {
			return reportMergeConflict(err)
		}
		if result.Created {
			fmt.Println("created:")
		} else {
			fmt.Println("matched:")
		}
		return printNodes(cmd, []*graph.Node{result.Node})
	},
}

var mergeEdgeCmd = &cobra.Command{
	Use:   "edge <type> <from> <to>",
	Short: "Merge an edge: update it if one already connects from->to, otherwise create it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid from id %q: %w", args[1], err)
		}
		to, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid to id %q: %w", args[2], err)
		}
		props, _ := cmd.Flags().GetString("props")
		onCreate, _ := cmd.Flags().GetString("on-create")
		onMatch, _ := cmd.Flags().GetString("on-match")
		baseProps, err := parseProperties(props)
		if err != nil {
			return err
		}
		onCreateProps, err := parseProperties(onCreate)
		if err != nil {
			return err
		}
		onMatchProps, err := parseProperties(onMatch)
		if err != nil {
			return err
		}

		result, err := app.DB.MergeEdge(cmd.Context(), graph.MergeEdgeOptions{
			Type:       args[0],
			From:       from,
			To:         to,
			Properties: baseProps,
			OnCreate:   onCreateProps,
			OnMatch:    onMatchProps,
		})
		if err != nil {
			return reportMergeConflict(err)
		}
		if result.Created {
			fmt.Println("created:")
		} else {
			fmt.Println("matched:")
		}
		return printEdges(cmd, []*graph.Edge{result.Edge})
	},
}

// reportMergeConflict adds the conflicting node ids to a MERGE_CONFLICT
// error's message so the CLI surfaces them without the caller needing to
// inspect the *graph.Error payload directly.
func reportMergeConflict(err error) error {
	var gerr *graph.Error
	if code, ok := graph.CodeOf(err); ok && code == graph.CodeMergeConflict {
		if e, ok := err.(*graph.Error); ok {
			gerr = e
			return fmt.Errorf("%s (conflicting ids: %v)", gerr.Msg, gerr.ConflictingNodes)
		}
	}
	return err
}

func init() {
	mergeNodeCmd.Flags().String("match", "", "properties that must match an existing node (JSON object, required)")
	mergeNodeCmd.Flags().String("on-create", "", "extra properties to set only when creating (JSON object)")
	mergeNodeCmd.Flags().String("on-match", "", "properties to set only when updating an existing match (JSON object)")
	_ = mergeNodeCmd.MarkFlagRequired("match")

	mergeEdgeCmd.Flags().String("props", "", "base properties applied whether creating or updating (JSON object)")
	mergeEdgeCmd.Flags().String("on-create", "", "extra properties to set only when creating (JSON object)")
	mergeEdgeCmd.Flags().String("on-match", "", "properties to set only when updating an existing match (JSON object)")

	mergeCmd.AddCommand(mergeNodeCmd, mergeEdgeCmd)
	rootCmd.AddCommand(mergeCmd)
}
