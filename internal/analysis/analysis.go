// Package analysis runs the per-buffer pipeline: parse, build scopes,
// classify. It is the single entry point shared by the editor engine, the
// indexer and the script runtime.
package analysis

import (
	"context"
	"fmt"

	"github.com/jward/shade/internal/classify"
	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/scope"
	"github.com/jward/shade/internal/span"
)

// Analysis is the immutable result of analysing one source text.
type Analysis struct {
	// Source is the analysed text. With Repaired set it is the patched
	// text, whose ranges match the original outside the patched lines.
	Source []byte
	Lines  *span.Lines
	Scopes *scope.Tree

	// Set holds every classified node, excluded categories included.
	// Exclusion is applied when diffing.
	Set highlight.Set

	Repaired  bool
	Recovered *parser.SyntaxError

	opts config.Options
}

// Options returns the options the analysis was computed with.
func (a *Analysis) Options() config.Options { return a.opts }

// SyntaxError returns the error the parser recovered from, or nil.
func (a *Analysis) SyntaxError() *parser.SyntaxError { return a.Recovered }

// Analyze parses src and classifies every name in it. It returns a
// *parser.SyntaxError when the source cannot be parsed (or repaired, with
// TolerateSyntaxErrors), and a *scope.InvariantError when the scope tree
// comes out inconsistent.
func Analyze(ctx context.Context, src []byte, opts config.Options) (*Analysis, error) {
	pt, err := parser.Parse(ctx, src, opts.Parser())
	if err != nil {
		return nil, err
	}
	defer pt.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := scope.Build(pt)
	if err != nil {
		return nil, fmt.Errorf("build scopes: %w", err)
	}

	return &Analysis{
		Source:    pt.Source,
		Lines:     pt.Lines,
		Scopes:    st,
		Set:       classify.Classify(st, opts.Classify()),
		Repaired:  pt.Repaired,
		Recovered: pt.Recovered,
		opts:      opts,
	}, nil
}

// Rendered returns the set as a renderer shows it, with the excluded
// categories dropped.
func (a *Analysis) Rendered() highlight.Set {
	return a.Set.Without(a.opts.Excluded)
}
