package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

// Palette, kept small and reused across every rendered command: one
// accent/warn/pass/muted set everywhere.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#57606a", Dark: "#8b949e"}
)

func init() {
	// termenv decides the color profile (truecolor/256/ansi/ascii) once at
	// startup; lipgloss styles above render through whatever profile this
	// resolves to, so commands never need their own ShouldUseColor checks.
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// RenderBold renders s in bold, no color.
func RenderBold(s string) string {
	return lipgloss.NewStyle().Bold(true).Render(s)
}

// RenderAccent renders s bold in the accent color, used for section headers.
func RenderAccent(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Render(s)
}

// RenderMuted renders s in the muted color, used for hints and secondary text.
func RenderMuted(s string) string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Render(s)
}

// RenderCommand renders s as a command name: bold, in the accent color, with
// no padding.
func RenderCommand(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Render(s)
}

// RenderWarn renders s in the warning color, used for PERFORMANCE_WARNING
// and similar advisory output.
func RenderWarn(s string) string {
	return lipgloss.NewStyle().Foreground(ColorWarn).Render(s)
}

// RenderPass renders s in the success color.
func RenderPass(s string) string {
	return lipgloss.NewStyle().Foreground(ColorPass).Render(s)
}

// RenderError renders err's message in the warning color, prefixed with the
// error's code when it carries one recognizable by the engine's taxonomy.
func RenderError(err error) string {
	msg := fmt.Sprintf("error: %v", err)
	if code, ok := graph.CodeOf(err); ok {
		msg = fmt.Sprintf("error [%s]: %v", code, err)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render(msg)
}
