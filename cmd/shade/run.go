package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/shade/internal/runtime"
	"github.com/jward/shade/internal/store"
	"github.com/jward/shade/scripts"
)

var flagScriptsDir string

var runCmd = &cobra.Command{
	Use:   "run <script> [file]",
	Short: "Run a Risor report script",
	Long: "Runs a Risor script with the analysis host functions (analyze, analyze_file, nodes, scopes, mark, rename, diff, jump, log). " +
		"The optional file is passed as the global `file`. When the index database exists, indexed_files, indexed_nodes, indexed_summary and db_query are available too. " +
		"Scripts come from the embedded set (e.g. report/summary.risor) unless --scripts-dir is given.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []runtime.RuntimeOption
		opts = append(opts, runtime.WithOptions(options), runtime.WithLogger(logger))
		if flagScriptsDir == "" {
			opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
		}

		s, err := openStoreIfPresent()
		if err != nil {
			return outputError(cmd, "run", err)
		}
		if s != nil {
			defer s.Close()
		}

		extras := map[string]any{}
		if len(args) == 2 {
			file, err := resolveFilePath(args[1])
			if err != nil {
				return outputError(cmd, "run", err)
			}
			extras["file"] = file
		}

		rt := runtime.NewRuntime(s, flagScriptsDir, opts...)
		result, err := rt.RunScript(cmd.Context(), args[0], extras)
		if err != nil {
			return outputError(cmd, "run", err)
		}
		return outputResult(cmd, "run", result)
	},
}

func init() {
	runCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from disk path instead of embedded")
}

// openStoreIfPresent opens the index database for the indexed_* and
// db_query functions. A missing
// database is not an error.
func openStoreIfPresent() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
