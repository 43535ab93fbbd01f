package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create, list, and drop property indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create <type> <property>",
	Short: "Create a partial index over a node property",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		unique, _ := cmd.Flags().GetBool("unique")
		name, _ := cmd.Flags().GetString("name")
		idx := graph.PropertyIndex{Type: args[0], Prop: args[1], Unique: unique, Name: name}
		if err := app.DB.CreatePropertyIndex(cmd.Context(), idx); err != nil {
			return err
		}
		if name == "" {
			name = graph.IndexName(args[0], args[1])
		}
		fmt.Printf("created index %s\n", name)
		return nil
	},
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List property indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := app.DB.ListIndexes(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop an index by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.DB.DropIndex(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("dropped index %s\n", args[0])
		return nil
	},
}

func init() {
	indexCreateCmd.Flags().Bool("unique", false, "create a UNIQUE index")
	indexCreateCmd.Flags().String("name", "", "explicit index name (defaults to the idx_merge_<type>_<prop> convention)")
	indexCmd.AddCommand(indexCreateCmd, indexListCmd, indexDropCmd)
	rootCmd.AddCommand(indexCmd)
}
