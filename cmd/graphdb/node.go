package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
	"github.com/michaeloboyle/sqlite-graph-sub003/internal/ui"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Create, inspect, and query nodes",
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create <type>",
	Short: "Create a node of the given type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		propsJSON, _ := cmd.Flags().GetString("props")
		props, err := parseProperties(propsJSON)
		if err != nil {
			return err
		}
		n, err := app.DB.CreateNode(cmd.Context(), args[0], props)
		if err != nil {
			return err
		}
		return printNodes(cmd, []*graph.Node{n})
	},
}

var nodeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a node by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", args[0], err)
		}
		n, err := app.DB.GetNode(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printNodes(cmd, []*graph.Node{n})
	},
}

var nodeUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a node's properties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", args[0], err)
		}
		propsJSON, _ := cmd.Flags().GetString("props")
		replace, _ := cmd.Flags().GetBool("replace")
		props, err := parseProperties(propsJSON)
		if err != nil {
			return err
		}
		n, err := app.DB.UpdateNode(cmd.Context(), id, props, replace)
		if err != nil {
			return err
		}
		return printNodes(cmd, []*graph.Node{n})
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a node and its incident edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", args[0], err)
		}
		if err := app.DB.DeleteNode(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted node %d\n", id)
		return nil
	},
}

var nodeQueryCmd = &cobra.Command{
	Use:   "query [type]",
	Short: "Query nodes (of one type, or of any type when omitted) with optional filters, ordering, and paging",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeType := ""
		if len(args) == 1 {
			nodeType = args[0]
		}
		q := app.DB.Query(nodeType)

		whereProp, _ := cmd.Flags().GetString("where")
		whereVal, _ := cmd.Flags().GetString("eq")
		if whereProp != "" {
			var v graph.Value
			if err := json.Unmarshal([]byte(whereVal), &v); err != nil {
				v = whereVal // bare strings are valid JSON only when quoted; fall back
			}
			q = q.Where(whereProp, graph.OpEq, v)
		}

		orderProp, _ := cmd.Flags().GetString("order-by")
		desc, _ := cmd.Flags().GetBool("desc")
		if orderProp != "" {
			q = q.OrderBy(orderProp, desc)
		}

		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			q = q.Limit(limit)
		}
		if offset, _ := cmd.Flags().GetInt("offset"); offset > 0 {
			q = q.Offset(offset)
		}

		nodes, err := q.Exec(cmd.Context())
		if err != nil {
			return err
		}
		return printNodes(cmd, nodes)
	},
}

func parseProperties(raw string) (graph.Properties, error) {
	if raw == "" {
		return nil, nil
	}
	var props graph.Properties
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("parse --props as JSON: %w", err)
	}
	return props, nil
}

func printNodes(cmd *cobra.Command, nodes []*graph.Node) error {
	if app.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	fmt.Println(ui.RenderNodeTable(nodes))
	return nil
}

func init() {
	nodeCreateCmd.Flags().String("props", "", "node properties as a JSON object")
	nodeUpdateCmd.Flags().String("props", "", "properties to merge (or set, with --replace) as a JSON object")
	nodeUpdateCmd.Flags().Bool("replace", false, "replace the property set instead of merging into it")
	nodeQueryCmd.Flags().String("where", "", "property name to filter on")
	nodeQueryCmd.Flags().String("eq", "", "value the --where property must equal (JSON literal)")
	nodeQueryCmd.Flags().String("order-by", "", "property name to sort by")
	nodeQueryCmd.Flags().Bool("desc", false, "sort descending")
	nodeQueryCmd.Flags().Int("limit", 0, "maximum rows to return")
	nodeQueryCmd.Flags().Int("offset", 0, "rows to skip before returning results")

	nodeCmd.AddCommand(nodeCreateCmd, nodeGetCmd, nodeUpdateCmd, nodeDeleteCmd, nodeQueryCmd)
	rootCmd.AddCommand(nodeCmd)
}
