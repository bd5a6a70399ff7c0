package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/shade"
)

var (
	flagForce   bool
	flagWorkers int
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index the Python files of a directory",
	Long:  "Analyses every Python file under path and writes scopes, bindings and classified occurrences to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "files analysed concurrently (default: one per CPU)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	dbPath := resolveDBPath(findRepoRoot(targetDir))

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError(cmd, "index", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError(cmd, "index", fmt.Errorf("removing database for --force: %w", err))
		}
		logger.Info("cleared database", "path", dbPath)
	}

	ix, err := shade.NewIndexer(dbPath,
		shade.WithIndexOptions(options),
		shade.WithIndexLogger(logger),
		shade.WithWorkers(flagWorkers),
	)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	defer ix.Close()

	if ix.SettingsChanged() {
		logger.Info("export settings changed, reindexing everything", "path", dbPath)
		if err := ix.Reset(); err != nil {
			return outputError(cmd, "index", err)
		}
	}

	stats, err := ix.IndexDirectory(cmd.Context(), targetDir)
	if err != nil {
		return outputError(cmd, "index", fmt.Errorf("indexing: %w", err))
	}
	return outputResult(cmd, "index", CLIIndexStats{
		Stats:      stats,
		Database:   dbPath,
		DurationMs: time.Since(start).Milliseconds(),
	})
}
