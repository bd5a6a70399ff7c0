package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/shade"
	"github.com/jward/shade/internal/span"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the index",
	Long:  "Run queries against an indexed tree. Lines are 1-based, columns 0-based.",
}

func init() {
	queryCmd.AddCommand(referencesCmd, unresolvedCmd, categoryCmd, summaryCmd, filesCmd)
}

// openIndexer opens the database from the --db flag path (or default).
func openIndexer() (*shade.Indexer, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'shade index' first)", dbPath)
	}
	return shade.NewIndexer(dbPath, shade.WithIndexOptions(options), shade.WithIndexLogger(logger))
}

// withQuery runs fn against an open index and prints its result.
func withQuery(cmd *cobra.Command, command string, fn func(q *shade.Query) (any, error)) error {
	ix, err := openIndexer()
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer ix.Close()

	result, err := fn(ix.Query())
	if err != nil {
		return outputError(cmd, command, err)
	}
	return outputResult(cmd, command, result)
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line:col>",
	Short: "Occurrences referring to the same thing as the name at a position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery(cmd, "references", func(q *shade.Query) (any, error) {
			file, err := resolveFilePath(args[0])
			if err != nil {
				return nil, err
			}
			pos, err := span.ParsePosition(args[1])
			if err != nil {
				return nil, err
			}
			locs, err := q.References(file, pos.Line, pos.Col)
			return locationsToCLI(locs), err
		})
	},
}

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "Every unresolved name in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery(cmd, "unresolved", func(q *shade.Query) (any, error) {
			locs, err := q.Unresolved()
			return locationsToCLI(locs), err
		})
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category <name>",
	Short: "Every occurrence of a highlight category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery(cmd, "category", func(q *shade.Query) (any, error) {
			locs, err := q.ByCategory(args[0])
			return locationsToCLI(locs), err
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Occurrence counts per category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery(cmd, "summary", func(q *shade.Query) (any, error) {
			counts, err := q.Summary()
			return CLISummary(counts), err
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Indexed files with their analysis status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery(cmd, "files", func(q *shade.Query) (any, error) {
			files, err := q.Files()
			return filesToCLI(files), err
		})
	},
}
