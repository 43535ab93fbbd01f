package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export every node and edge to a versioned JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := app.DB.Export(cmd.Context())
		if err != nil {
			return err
		}
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[0], err)
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		fmt.Printf("exported %d nodes, %d edges to %s\n", len(doc.Nodes), len(doc.Edges), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a previously exported JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var doc graph.ExportDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		if err := app.DB.Import(cmd.Context(), &doc); err != nil {
			return err
		}
		fmt.Printf("imported %d nodes, %d edges from %s\n", len(doc.Nodes), len(doc.Edges), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
