package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
	"github.com/michaeloboyle/sqlite-graph-sub003/internal/ui"
)

var whenParser *when.Parser

func init() {
	whenParser = when.New(nil)
	whenParser.Add(en.All...)
	whenParser.Add(common.All...)
}

var traverseCmd = &cobra.Command{
	Use:   "traverse <start-id>",
	Short: "Walk the graph outward from a node (BFS array/paths or shortest path)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid start id %q: %w", args[0], err)
		}

		opts, err := traversalOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		to, _ := cmd.Flags().GetInt64("to")
		wantPaths, _ := cmd.Flags().GetBool("paths")

		if to != 0 {
			p, err := app.DB.ShortestPath(cmd.Context(), startID, to, opts)
			if err != nil {
				return err
			}
			return printPaths(cmd, []*graph.Path{p})
		}

		if wantPaths {
			paths, err := app.DB.ToPaths(cmd.Context(), startID, opts)
			if err != nil {
				return err
			}
			return printPaths(cmd, paths)
		}

		nodes, err := app.DB.ToArray(cmd.Context(), startID, opts)
		if err != nil {
			return err
		}
		return printNodes(cmd, nodes)
	},
}

// traversalOptionsFromFlags builds graph.TraversalOptions from the command's
// flags, including a --since natural-language cutoff applied as a
// post-materialization filter over node CreatedAt. Free-text dates go
// through olebedev/when rather than requiring a strict timestamp format.
func traversalOptionsFromFlags(cmd *cobra.Command) (graph.TraversalOptions, error) {
	dirFlag, _ := cmd.Flags().GetString("dir")
	var dir graph.Direction
	switch dirFlag {
	case "out":
		dir = graph.DirOut
	case "in":
		dir = graph.DirIn
	default:
		dir = graph.DirBoth
	}

	edgeType, _ := cmd.Flags().GetString("edge-type")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	if maxDepth <= 0 {
		maxDepth = 10
	}
	minDepth, _ := cmd.Flags().GetInt("min-depth")
	nodeType, _ := cmd.Flags().GetString("node-type")
	unique, _ := cmd.Flags().GetBool("unique")

	opts := graph.TraversalOptions{
		Dir:            dir,
		EdgeType:       edgeType,
		MaxDepth:       maxDepth,
		MinDepth:       minDepth,
		NodeTypeFilter: nodeType,
		Unique:         unique,
		UniqueSet:      cmd.Flags().Changed("unique"),
	}

	since, _ := cmd.Flags().GetString("since")
	if since == "" {
		return opts, nil
	}
	r, err := whenParser.Parse(since, time.Now())
	if err != nil {
		return opts, fmt.Errorf("parse --since %q: %w", since, err)
	}
	if r == nil {
		return opts, fmt.Errorf("could not understand --since %q as a date/time", since)
	}
	cutoff := r.Time
	opts.UserFilter = func(n *graph.Node) bool {
		return !n.CreatedAt.Before(cutoff)
	}
	return opts, nil
}

func printPaths(cmd *cobra.Command, paths []*graph.Path) error {
	if app.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(paths)
	}
	resolve := func(id int64) *graph.Node {
		n, err := app.DB.GetNode(cmd.Context(), id)
		if err != nil {
			return nil
		}
		return n
	}
	fmt.Println(ui.RenderPaths(paths, resolve))
	return nil
}

func init() {
	traverseCmd.Flags().String("dir", "both", "edge direction to follow: out, in, or both")
	traverseCmd.Flags().String("edge-type", "", "restrict traversal to this edge type")
	traverseCmd.Flags().Int("max-depth", 0, "maximum hop count (0 or less means 10)")
	traverseCmd.Flags().Int("min-depth", 0, "suppress nodes/paths closer than this many hops")
	traverseCmd.Flags().String("node-type", "", "restrict emitted nodes to this type")
	traverseCmd.Flags().Bool("unique", true, "visit each node once (false allows repeat emission through multiple edges)")
	traverseCmd.Flags().String("since", "", "natural-language cutoff (e.g. \"3 days ago\"); only nodes created at or after it are emitted")
	traverseCmd.Flags().Int64("to", 0, "if set, find the shortest path to this node id instead of walking the whole reachable set")
	traverseCmd.Flags().Bool("paths", false, "emit one path per reachable node instead of a flat node array")
	rootCmd.AddCommand(traverseCmd)
}
