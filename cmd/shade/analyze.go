package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/shade"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/span"
)

// analyzeFile reads and analyses a Python file with the loaded options.
func analyzeFile(ctx context.Context, path string) (*shade.Analysis, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	a, err := shade.Analyze(ctx, src, options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rec := a.SyntaxError(); rec != nil {
		logger.Info("syntax error repaired", "file", path, "error", rec)
	}
	return a, nil
}

// --- highlight ---

var flagAll bool

var highlightCmd = &cobra.Command{
	Use:   "highlight <file>",
	Short: "Print the semantic highlights of a Python file",
	Long:  "Analyses a file and prints every highlighted name with its category. Lines are 1-based, columns 0-based.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := analyzeFile(cmd.Context(), args[0])
		if err != nil {
			return outputError(cmd, "highlight", err)
		}
		set := a.Rendered()
		if flagAll {
			set = a.Set
		}
		result := CLIHighlight{File: args[0], Repaired: a.Repaired}
		if rec := a.SyntaxError(); rec != nil {
			result.SyntaxError = rec.Error()
		}
		result.Nodes = make([]CLINode, 0, len(set))
		for _, it := range set.Sorted() {
			result.Nodes = append(result.Nodes, nodeToCLI(it))
		}
		return outputResult(cmd, "highlight", result)
	},
}

func init() {
	highlightCmd.Flags().BoolVar(&flagAll, "all", false, "include excluded categories")
}

// --- diff ---

var diffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Print the highlight operations turning one version of a file into another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := analyzeFile(cmd.Context(), args[0])
		if err != nil {
			return outputError(cmd, "diff", err)
		}
		after, err := analyzeFile(cmd.Context(), args[1])
		if err != nil {
			return outputError(cmd, "diff", err)
		}

		res := highlight.Diff(before.Rendered(), after.Set, options.Diff())
		out := CLIDiff{Mode: res.Mode.String(), Ops: make([]CLIOp, 0, len(res.Ops))}
		for _, op := range res.Ops {
			out.Ops = append(out.Ops, CLIOp{
				Op:      op.Kind.String(),
				CLINode: nodeToCLI(highlight.Item{Key: op.Key, Entry: highlight.Entry{Category: op.Category, Range: op.Range, Name: op.Name}}),
			})
		}
		return outputResult(cmd, "diff", out)
	},
}

// --- mark ---

var markCmd = &cobra.Command{
	Use:   "mark <file> <line:col>",
	Short: "Print the ranges marked for the name at a position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, pos, err := analyzeAt(cmd, args[0], args[1])
		if err != nil {
			return outputError(cmd, "mark", err)
		}
		nopts := options.Navigate()
		nopts.MarkOriginal = true
		ranges := navigate.Mark(a.Scopes, pos, nopts)
		out := make([]CLIRange, len(ranges))
		for i, r := range ranges {
			out[i] = rangeToCLI(r)
		}
		return outputResult(cmd, "mark", out)
	},
}

// --- rename ---

var flagWrite bool

var renameCmd = &cobra.Command{
	Use:   "rename <file> <line:col> <new-name>",
	Short: "Rename the name at a position and every occurrence referring to the same thing",
	Long:  "Prints the rename edits, or applies them to the file with --write. Nothing is written when the rename is refused.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, pos, err := analyzeAt(cmd, args[0], args[1])
		if err != nil {
			return outputError(cmd, "rename", err)
		}
		edits, err := navigate.Rename(a.Scopes, pos, args[2])
		if err != nil {
			return outputError(cmd, "rename", err)
		}

		if flagWrite {
			out, err := navigate.ApplyEdits(a.Source, edits)
			if err != nil {
				return outputError(cmd, "rename", err)
			}
			info, err := os.Stat(args[0])
			if err != nil {
				return outputError(cmd, "rename", err)
			}
			if err := os.WriteFile(args[0], out, info.Mode().Perm()); err != nil {
				return outputError(cmd, "rename", fmt.Errorf("writing %s: %w", args[0], err))
			}
			logger.Info("renamed", "file", args[0], "occurrences", len(edits), "to", args[2])
		}

		out := make([]CLIEdit, len(edits))
		for i, e := range edits {
			out[i] = CLIEdit{CLIRange: rangeToCLI(e.Range), NewText: e.NewText}
		}
		return outputResult(cmd, "rename", out)
	},
}

func init() {
	renameCmd.Flags().BoolVarP(&flagWrite, "write", "w", false, "apply the edits to the file")
}

// --- goto ---

var flagDirection string

var gotoCmd = &cobra.Command{
	Use:   "goto <file> <kind> <line:col>",
	Short: "Find the next node of a kind from a position",
	Long: "Kind is name (the occurrences of the name at the position), function, class, import or a category name. " +
		"Next and prev wrap around the file.",
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, pos, err := analyzeAt(cmd, args[0], args[2])
		if err != nil {
			return outputError(cmd, "goto", err)
		}
		dir, err := navigate.ParseDirection(flagDirection)
		if err != nil {
			return outputError(cmd, "goto", err)
		}
		to, ok, err := navigate.Goto(a.Scopes, args[1], dir, pos)
		if err != nil {
			return outputError(cmd, "goto", err)
		}
		out := CLIPosition{Found: ok}
		if ok {
			out.Line, out.Col = to.Line, to.Col
		}
		return outputResult(cmd, "goto", out)
	},
}

func init() {
	gotoCmd.Flags().StringVar(&flagDirection, "dir", "next", "direction: next|prev|first|last")
}

func analyzeAt(cmd *cobra.Command, file, at string) (*shade.Analysis, span.Position, error) {
	pos, err := span.ParsePosition(at)
	if err != nil {
		return nil, span.Position{}, err
	}
	a, err := analyzeFile(cmd.Context(), file)
	if err != nil {
		return nil, span.Position{}, err
	}
	return a, pos, nil
}
