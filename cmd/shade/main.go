package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/shade"
	"github.com/jward/shade/internal/logx"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagColor   string
	flagVerbose int
	flagQuiet   bool
)

// Loaded by the root command's PersistentPreRunE.
var (
	options shade.Options
	logger  = logx.NewDiscardLogger()
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "shade",
	Short:         "Semantic highlighting for Python",
	Long:          "Shade classifies every name in Python source by what it refers to (locals, globals, parameters, imports, builtins, attributes, free and unresolved names) and answers navigation and refactoring questions on top of that.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		if err := setupColor(flagColor); err != nil {
			return err
		}
		return loadOptions()
	},
	// No Run: prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDB, "db", "", "database path (default: .shade/index.db relative to repo root)")
	pf.StringVar(&flagFormat, "format", "text", "output format: "+formatList())
	pf.StringVar(&flagConfig, "config", "", "config file (default: .shade.* in the working directory)")
	pf.StringVar(&flagColor, "color", "auto", "colorize text output: auto|always|never")
	pf.CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "silence logging")

	rootCmd.AddCommand(highlightCmd, diffCmd, markCmd, renameCmd, gotoCmd)
	rootCmd.AddCommand(indexCmd, queryCmd, watchCmd, runCmd)
}

// loadOptions reads the config file and builds the logger. -v and -q win
// over the configured log level.
func loadOptions() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	opts, err := shade.LoadOptions(cwd, flagConfig)
	if err != nil {
		return err
	}
	options = opts

	level := logx.LevelFromString(opts.LogLevel)
	if flagVerbose > 0 || flagQuiet {
		level = logx.LevelFromVerbosity(flagVerbose, flagQuiet)
	}
	logger = logx.NewLogger(os.Stderr, level)
	logger.Debug("options loaded", "config", flagConfig, "log_level", level)
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".shade", "index.db")
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}
