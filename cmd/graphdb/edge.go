package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
	"github.com/michaeloboyle/sqlite-graph-sub003/internal/ui"
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Create, inspect, and delete edges",
}

var edgeCreateCmd = &cobra.Command{
	Use:   "create <type> <from> <to>",
	Short: "Create a directed edge between two nodes",
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
		propsJSON, _ := cmd.Flags().GetString("props")
		props, err := parseProperties(propsJSON)
		if err != nil {
			return err
		}
		e, err := app.DB.CreateEdge(cmd.Context(), args[0], from, to, props)
		if err != nil {
			return err
		}
		return printEdges(cmd, []*graph.Edge{e})
	},
}

var edgeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch an edge by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid edge id %q: %w", args[0], err)
		}
		e, err := app.DB.GetEdge(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printEdges(cmd, []*graph.Edge{e})
	},
}

var edgeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an edge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid edge id %q: %w", args[0], err)
		}
		if err := app.DB.DeleteEdge(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted edge %d\n", id)
		return nil
	},
}

func printEdges(cmd *cobra.Command, edges []*graph.Edge) error {
	if app.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(edges)
	}
	fmt.Println(ui.RenderEdgeTable(edges))
	return nil
}

func init() {
	edgeCreateCmd.Flags().String("props", "", "edge properties as a JSON object")
	edgeCmd.AddCommand(edgeCreateCmd, edgeGetCmd, edgeDeleteCmd)
	rootCmd.AddCommand(edgeCmd)
}
