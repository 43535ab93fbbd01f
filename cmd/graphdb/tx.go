package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

// txOp is one step of a scripted transaction batch: exactly one of
// CreateNode/CreateEdge/MergeNode/MergeEdge is set.
type txOp struct {
	CreateNode *struct {
		Type  string           `json:"type"`
		Props graph.Properties `json:"props"`
	} `json:"createNode,omitempty"`
	CreateEdge *struct {
		Type  string           `json:"type"`
		From  int64            `json:"from"`
		To    int64            `json:"to"`
		Props graph.Properties `json:"props"`
	} `json:"createEdge,omitempty"`
	MergeNode *graph.MergeNodeOptions `json:"mergeNode,omitempty"`
	MergeEdge *graph.MergeEdgeOptions `json:"mergeEdge,omitempty"`
}

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Transactional batch operations",
}

var txRunCmd = &cobra.Command{
	Use:   "run <script.json>",
	Short: "Run a batch of operations inside a single transaction, all-or-nothing",
	Long: `Reads a JSON array of operations and runs them inside one
transaction: if any step fails, every prior step in the batch is rolled
back.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var ops []txOp
		if err := json.Unmarshal(raw, &ops); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		return app.DB.Transaction(cmd.Context(), func(tx *graph.Tx) error {
			for i, op := range ops {
				switch {
				case op.CreateNode != nil:
					n, err := tx.CreateNode(op.CreateNode.Type, op.CreateNode.Props)
					if err != nil {
						return fmt.Errorf("step %d (createNode): %w", i, err)
					}
					fmt.Printf("step %d: created node %d\n", i, n.ID)
				case op.CreateEdge != nil:
					e, err := tx.CreateEdge(op.CreateEdge.Type, op.CreateEdge.From, op.CreateEdge.To, op.CreateEdge.Props)
					if err != nil {
						return fmt.Errorf("step %d (createEdge): %w", i, err)
					}
					fmt.Printf("step %d: created edge %d\n", i, e.ID)
				case op.MergeNode != nil:
					r, err := tx.MergeNode(*op.MergeNode)
					if err != nil {
						return fmt.Errorf("step %d (mergeNode): %w", i, err)
					}
					fmt.Printf("step %d: merged node %d (created=%v)\n", i, r.Node.ID, r.Created)
				case op.MergeEdge != nil:
					r, err := tx.MergeEdge(*op.MergeEdge)
					if err != nil {
						return fmt.Errorf("step %d (mergeEdge): %w", i, err)
					}
					fmt.Printf("step %d: merged edge %d (created=%v)\n", i, r.Edge.ID, r.Created)
				default:
					return fmt.Errorf("step %d: empty operation", i)
				}
			}
			return nil
		})
	},
}

func init() {
	txCmd.AddCommand(txRunCmd)
	rootCmd.AddCommand(txCmd)
}
