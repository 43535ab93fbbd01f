package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

// nodeLabel is what a node looks like inside a rendered tree or table: its
// type, id, and a name/title property if the node happens to have one.
func nodeLabel(n *graph.Node) string {
	if n == nil {
		return "?"
	}
	for _, key := range []string{"name", "title"} {
		if s, ok := n.Properties[key].(string); ok && s != "" {
			return fmt.Sprintf("%s:%d %q", n.Type, n.ID, s)
		}
	}
	return fmt.Sprintf("%s:%d", n.Type, n.ID)
}

// RenderNodeTable renders a list of nodes as a bordered table, one row per
// node, columns ID / Type / Properties.
func RenderNodeTable(nodes []*graph.Node) string {
	if len(nodes) == 0 {
		return RenderMuted("No nodes found.")
	}
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			fmt.Sprintf("%d", n.ID),
			n.Type,
			formatProperties(n.Properties),
		})
	}
	return table.New().
		Headers("ID", "Type", "Properties").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

// RenderEdgeTable renders a list of edges the same way RenderNodeTable does
// for nodes.
func RenderEdgeTable(edges []*graph.Edge) string {
	if len(edges) == 0 {
		return RenderMuted("No edges found.")
	}
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.ID),
			e.Type,
			fmt.Sprintf("%d", e.From),
			fmt.Sprintf("%d", e.To),
			formatProperties(e.Properties),
		})
	}
	return table.New().
		Headers("ID", "Type", "From", "To", "Properties").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

func formatProperties(p graph.Properties) string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p))
	for k, v := range p {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ", ")
}

// BuildPathTree renders a traversal result as a single lipgloss/tree chain:
// one path's worth of nodes nested start-to-end. resolve looks up a node by
// id for labeling; a lookup failure falls back to the bare id.
func BuildPathTree(path *graph.Path, resolve func(int64) *graph.Node) *tree.Tree {
	if path == nil || len(path.NodeIDs) == 0 {
		return nil
	}
	label := func(id int64) string {
		if n := resolve(id); n != nil {
			return nodeLabel(n)
		}
		return fmt.Sprintf("%d", id)
	}
	root := tree.New().Root(label(path.NodeIDs[0])).
		EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	cur := root
	for _, id := range path.NodeIDs[1:] {
		child := tree.New().Root(label(id)).
			EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
		cur.Child(child)
		cur = child
	}
	return root
}

// RenderPaths renders every path from a traversal as its own tree, stacked
// with a blank line between them.
func RenderPaths(paths []*graph.Path, resolve func(int64) *graph.Node) string {
	if len(paths) == 0 {
		return RenderMuted("No paths found.")
	}
	var sb strings.Builder
	for i, p := range paths {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		t := BuildPathTree(p, resolve)
		if t != nil {
			sb.WriteString(t.String())
		}
	}
	return sb.String()
}
