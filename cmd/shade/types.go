package main

import (
	"github.com/jward/shade"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/span"
)

// CLIResult is the top-level envelope of json and yaml output.
type CLIResult struct {
	Command string `json:"command" yaml:"command"`
	Results any    `json:"results" yaml:"results"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLINode is one highlighted name.
type CLINode struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Scope    string `json:"scope" yaml:"scope"`
	Line     int    `json:"line" yaml:"line"`
	Col      int    `json:"col" yaml:"col"`
	EndLine  int    `json:"end_line" yaml:"end_line"`
	EndCol   int    `json:"end_col" yaml:"end_col"`
}

// CLIHighlight is the result of the highlight command.
type CLIHighlight struct {
	File        string    `json:"file" yaml:"file"`
	Repaired    bool      `json:"repaired" yaml:"repaired"`
	SyntaxError string    `json:"syntax_error,omitempty" yaml:"syntax_error,omitempty"`
	Nodes       []CLINode `json:"nodes" yaml:"nodes"`
}

// CLIOp is one diff operation.
type CLIOp struct {
	Op string `json:"op" yaml:"op"`
	CLINode
}

// CLIDiff is the result of the diff command.
type CLIDiff struct {
	Mode string  `json:"mode" yaml:"mode"`
	Ops  []CLIOp `json:"ops" yaml:"ops"`
}

// CLIRange is a bare source range.
type CLIRange struct {
	Line    int `json:"line" yaml:"line"`
	Col     int `json:"col" yaml:"col"`
	EndLine int `json:"end_line" yaml:"end_line"`
	EndCol  int `json:"end_col" yaml:"end_col"`
}

// CLIEdit is one rename edit.
type CLIEdit struct {
	CLIRange `yaml:",inline"`
	NewText  string `json:"new_text" yaml:"new_text"`
}

// CLIPosition is the result of the goto command. Found is false when no
// candidate exists.
type CLIPosition struct {
	Found bool `json:"found" yaml:"found"`
	Line  int  `json:"line,omitempty" yaml:"line,omitempty"`
	Col   int  `json:"col,omitempty" yaml:"col,omitempty"`
}

// CLILocation is a query hit.
type CLILocation struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	StartCol  int    `json:"start_col" yaml:"start_col"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	EndCol    int    `json:"end_col" yaml:"end_col"`
	Name      string `json:"name" yaml:"name"`
	Category  string `json:"category" yaml:"category"`
}

// CLIFile is an indexed file.
type CLIFile struct {
	ID          int64  `json:"id" yaml:"id"`
	Path        string `json:"path" yaml:"path"`
	LineCount   int    `json:"line_count" yaml:"line_count"`
	Repaired    bool   `json:"repaired" yaml:"repaired"`
	SyntaxError string `json:"syntax_error,omitempty" yaml:"syntax_error,omitempty"`
}

// CLISummary counts occurrences per category.
type CLISummary map[string]int

// CLIIndexStats is the result of the index command.
type CLIIndexStats struct {
	shade.Stats `yaml:",inline"`
	Database    string `json:"database" yaml:"database"`
	DurationMs  int64  `json:"duration_ms" yaml:"duration_ms"`
}

func nodeToCLI(it highlight.Item) CLINode {
	return CLINode{
		Name:     it.Name,
		Category: it.Category.String(),
		Scope:    it.Key.Scope,
		Line:     it.Range.Start.Line,
		Col:      it.Range.Start.Col,
		EndLine:  it.Range.End.Line,
		EndCol:   it.Range.End.Col,
	}
}

func rangeToCLI(r span.Range) CLIRange {
	return CLIRange{Line: r.Start.Line, Col: r.Start.Col, EndLine: r.End.Line, EndCol: r.End.Col}
}

func locationsToCLI(locs []shade.Location) []CLILocation {
	out := make([]CLILocation, len(locs))
	for i, l := range locs {
		out[i] = CLILocation(l)
	}
	return out
}

func filesToCLI(files []*shade.File) []CLIFile {
	out := make([]CLIFile, len(files))
	for i, f := range files {
		out[i] = CLIFile{ID: f.ID, Path: f.Path, LineCount: f.LineCount, Repaired: f.Repaired, SyntaxError: f.SyntaxError}
	}
	return out
}
