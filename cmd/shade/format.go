package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"text", "json", "yaml"}

func formatList() string { return strings.Join(validFormats, "|") }

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}

// setupColor decides whether text output is colorized.
func setupColor(mode string) error {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	case "auto":
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != ""
	default:
		return fmt.Errorf("invalid color mode %q: must be auto, always or never", mode)
	}
	return nil
}

// categoryColors follows the default highlight groups of editor plugins.
var categoryColors = map[string]*color.Color{
	"local":           color.New(color.FgWhite),
	"global":          color.New(color.FgYellow),
	"imported":        color.New(color.FgYellow, color.Bold),
	"parameter":       color.New(color.FgBlue),
	"parameterUnused": color.New(color.FgBlue, color.Underline),
	"builtin":         color.New(color.FgMagenta, color.Bold),
	"attribute":       color.New(color.FgCyan),
	"self":            color.New(color.FgHiBlack),
	"free":            color.New(color.FgHiRed),
	"unresolved":      color.New(color.FgRed, color.Underline),
}

var (
	headingColor = color.New(color.Bold)
	addColor     = color.New(color.FgGreen)
	removeColor  = color.New(color.FgRed)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func paintCategory(category string) string {
	if c, ok := categoryColors[category]; ok {
		return c.Sprint(category)
	}
	return category
}

// outputResult writes a result to the command's output in the selected
// format.
func outputResult(cmd *cobra.Command, command string, results any) error {
	w := cmd.OutOrStdout()
	switch flagFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResult{Command: command, Results: results})
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(CLIResult{Command: command, Results: results})
	}
	return outputResultText(w, results)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. Structured formats write the envelope to
// stdout; text goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	switch flagFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	case "yaml":
		_ = yaml.NewEncoder(cmd.OutOrStdout()).Encode(CLIResult{Command: command, Error: err.Error()})
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", errorColor.Sprint("Error:"), err)
	}
	return err
}

// outputResultText dispatches to the text formatter of the result type.
func outputResultText(w io.Writer, result any) error {
	switch v := result.(type) {
	case CLIHighlight:
		formatHighlightText(w, v)
	case CLIDiff:
		formatDiffText(w, v)
	case []CLIRange:
		for _, r := range v {
			fmt.Fprintf(w, "%d:%d-%d:%d\n", r.Line, r.Col, r.EndLine, r.EndCol)
		}
	case []CLIEdit:
		for _, e := range v {
			fmt.Fprintf(w, "%d:%d-%d:%d %s\n", e.Line, e.Col, e.EndLine, e.EndCol, e.NewText)
		}
	case CLIPosition:
		if v.Found {
			fmt.Fprintf(w, "%d:%d\n", v.Line, v.Col)
		}
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case CLIIndexStats:
		fmt.Fprintf(w, "indexed %d, skipped %d, removed %d, repaired %d, syntax errors %d, failed %d in %dms\n",
			v.Indexed, v.Skipped, v.Removed, v.Repaired, v.SyntaxErrors, v.Failed, v.DurationMs)
		fmt.Fprintf(w, "Database: %s\n", v.Database)
	case nil:
	default:
		// Script results are plain Go values.
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("unsupported result type for text format: %T", v)
		}
		_, err = w.Write(out)
		return err
	}
	return nil
}

func formatHighlightText(w io.Writer, h CLIHighlight) {
	if h.SyntaxError != "" {
		fmt.Fprintf(w, "%s %s\n", errorColor.Sprint("repaired:"), h.SyntaxError)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, headingColor.Sprint("POS\tNAME\tCATEGORY\tSCOPE"))
	for _, n := range h.Nodes {
		fmt.Fprintf(tw, "%d:%d\t%s\t%s\t%s\n", n.Line, n.Col, n.Name, paintCategory(n.Category), n.Scope)
	}
	tw.Flush()
}

func formatDiffText(w io.Writer, d CLIDiff) {
	fmt.Fprintf(w, "mode: %s\n", d.Mode)
	for _, op := range d.Ops {
		sign := addColor.Sprint("+")
		if op.Op == "remove" {
			sign = removeColor.Sprint("-")
		}
		fmt.Fprintf(w, "%s %d:%d %s %s\n", sign, op.Line, op.Col, op.Name, paintCategory(op.Category))
	}
}

// formatLocationsText formats locations as "file:line:col name category".
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d %s %s\n", loc.File, loc.StartLine, loc.StartCol, loc.Name, paintCategory(loc.Category))
	}
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, headingColor.Sprint("ID\tPATH\tLINES\tSTATUS"))
	for _, f := range files {
		status := "ok"
		switch {
		case f.Repaired:
			status = "repaired"
		case f.SyntaxError != "":
			status = "syntax error"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", f.ID, f.Path, f.LineCount, status)
	}
	tw.Flush()
}

func formatSummaryText(w io.Writer, s CLISummary) {
	cats := make([]string, 0, len(s))
	for c := range s {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%d\n", paintCategory(c), s[c])
	}
	tw.Flush()
}
