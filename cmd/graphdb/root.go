// Package main implements graphdb, a command-line front end over the
// embedded property-graph engine in internal/graph.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/config"
	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
	"github.com/michaeloboyle/sqlite-graph-sub003/internal/ui"
	"gopkg.in/natefinch/lumberjack.v2"
)

// appCtx consolidates the CLI's runtime state so commands share one
// database handle and logger instead of scattered package globals.
type appCtx struct {
	DBPath     string
	JSONOutput bool
	NoColor    bool
	DB         *graph.DB
	Log        *slog.Logger
}

var app = &appCtx{}

var rootCmd = &cobra.Command{
	Use:           "graphdb",
	Short:         "Embedded property-graph database CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if v, _ := cmd.Flags().GetString("db"); v != "" {
			config.Set("db", v)
		}
		if v, _ := cmd.Flags().GetBool("json"); v {
			config.Set("json", true)
		}
		if v, _ := cmd.Flags().GetBool("no-color"); v {
			config.Set("no-color", true)
		}
		if v, _ := cmd.Flags().GetString("schema"); v != "" {
			config.Set("schema", v)
		}

		app.DBPath = config.GetString("db")
		app.JSONOutput = config.GetBool("json")
		app.NoColor = config.GetBool("no-color")
		if app.NoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
		app.Log = newLogger()

		// Commands that manage configuration or schema files directly
		// (e.g. "schema convert") don't need a live database handle.
		if cmd.Annotations["no-db"] == "true" {
			return nil
		}

		var schema *graph.Schema
		if path := config.GetString("schema"); path != "" {
			s, err := loadSchemaFile(path)
			if err != nil {
				return fmt.Errorf("load schema: %w", err)
			}
			schema = s
		}

		db, err := graph.Open(graph.Options{
			Path:          app.DBPath,
			WAL:           config.GetBool("wal"),
			BusyTimeoutMS: int(config.GetDuration("busy-timeout").Milliseconds()),
			Schema:        schema,
			ProcessLock:   config.GetBool("process-lock"),
			Logger:        app.Log,
		})
		if err != nil {
			return err
		}
		app.DB = db
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app.DB != nil {
			return app.DB.Close()
		}
		return nil
	},
}

// newLogger builds the structured logger every command shares, rotating to
// disk via lumberjack when log.file is configured and to stderr otherwise.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if path := config.GetString("log.file"); path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    config.GetInt("log.max-size-mb"),
			MaxBackups: config.GetInt("log.max-backups"),
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadSchemaFile(path string) (*graph.Schema, error) {
	switch {
	case hasSuffix(path, ".yaml"), hasSuffix(path, ".yml"):
		return graph.LoadSchemaYAML(path)
	case hasSuffix(path, ".toml"):
		return graph.LoadSchemaTOML(path)
	default:
		return nil, fmt.Errorf("unrecognized schema file extension for %q (want .yaml or .toml)", path)
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "path to the graph database file (default graph.db)")
	rootCmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON instead of styled tables")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable ANSI color/style output")
	rootCmd.PersistentFlags().String("schema", "", "schema document (.yaml/.toml) to validate nodes/edges against")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, ui.RenderError(err))
	os.Exit(1)
}
