package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/michaeloboyle/sqlite-graph-sub003/internal/graph"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect, convert, and watch schema documents",
}

var schemaShowCmd = &cobra.Command{
	Use:         "show <file>",
	Short:       "Load a schema document and print the node/edge types it permits",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"no-db": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchemaFile(args[0])
		if err != nil {
			return err
		}
		for t := range s.Nodes {
			fmt.Printf("node  %s\n", t)
		}
		for t := range s.Edges {
			fmt.Printf("edge  %s\n", t)
		}
		return nil
	},
}

var schemaConvertCmd = &cobra.Command{
	Use:         "convert <in-file> <out-file>",
	Short:       "Convert a schema document between YAML and TOML (by the out-file extension)",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{"no-db": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchemaFile(args[0])
		if err != nil {
			return err
		}
		if hasSuffix(args[1], ".toml") {
			return graph.SaveSchemaTOML(args[1], s)
		}
		return graph.SaveSchemaYAML(args[1], s)
	},
}

// schemaWatchCmd reloads a schema document into the running process's
// validation rules whenever the file changes on disk, debounced so a burst
// of writes from an editor's save doesn't reload the file mid-write. The
// file's parent directory is watched (not the file itself) so editors that
// save by rename-and-replace still trigger a reload; if fsnotify can't
// start at all, a polling fallback takes over.
var schemaWatchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Reload a schema document and re-apply it to the open database whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		reload := func() {
			s, err := loadSchemaFile(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "schema watch: reload failed: %v\n", err)
				return
			}
			app.DB.SetSchema(s)
			fmt.Printf("schema watch: reloaded %s\n", path)
		}
		reload()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return pollSchemaFile(cmd, path, reload)
		}
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return pollSchemaFile(cmd, path, reload)
		}

		var pending *time.Timer
		debounce := 300 * time.Millisecond
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(debounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "schema watch: %v\n", err)
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

func pollSchemaFile(cmd *cobra.Command, path string, reload func()) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "schema watch: falling back to polling (fsnotify unavailable)")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			reload()
		case <-cmd.Context().Done():
			return nil
		}
	}
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd, schemaConvertCmd, schemaWatchCmd)
	rootCmd.AddCommand(schemaCmd)
}
