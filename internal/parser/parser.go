// Package parser turns Python source into a tree-sitter syntax tree and
// repairs the common shapes of half-typed code so that the rest of a buffer
// can still be analysed while the user is mid-edit.
package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/shade/internal/span"
)

// DefaultMaxRepairs bounds the repair rounds of a single Parse.
const DefaultMaxRepairs = 4

// Options configures Parse.
type Options struct {
	// Tolerant enables the repair loop. When false, any syntax error is
	// returned as is.
	Tolerant bool

	// MaxRepairs bounds the number of repair rounds. Zero means
	// DefaultMaxRepairs.
	MaxRepairs int
}

// SyntaxError describes the first offending token of a source text.
type SyntaxError struct {
	Range   span.Range
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Range.Start, e.Message)
}

// Tree is a successfully parsed (possibly repaired) source text.
type Tree struct {
	// Source is the text the tree was built from. It differs from the input
	// only on patched lines when Repaired is set.
	Source []byte
	Lines  *span.Lines
	Root   *sitter.Node

	// Repaired is set when the input had to be patched; Recovered then
	// holds the error that triggered the first repair.
	Repaired  bool
	Recovered *SyntaxError

	tree *sitter.Tree
}

// Close releases the tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Text returns the source text of n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.Source)
}

// Range returns the span of n in code point columns.
func (t *Tree) Range(n *sitter.Node) span.Range {
	sp, ep := n.StartPoint(), n.EndPoint()
	return span.Range{
		Start: t.Lines.Position(int(sp.Row), int(sp.Column)),
		End:   t.Lines.Position(int(ep.Row), int(ep.Column)),
	}
}

// Parse parses src. A tree that contains ERROR or MISSING nodes counts as a
// failure; with opts.Tolerant the source is patched and reparsed a bounded
// number of times before giving up with a *SyntaxError.
func Parse(ctx context.Context, src []byte, opts Options) (*Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	t, synErr, err := parseOnce(ctx, p, src)
	if err != nil {
		return nil, err
	}
	if synErr == nil {
		return t, nil
	}
	if !opts.Tolerant {
		return nil, synErr
	}

	rounds := opts.MaxRepairs
	if rounds <= 0 {
		rounds = DefaultMaxRepairs
	}
	repaired, err := repair(ctx, p, src, synErr, rounds)
	if err != nil {
		return nil, err
	}
	if repaired == nil {
		return nil, synErr
	}
	repaired.Repaired = true
	repaired.Recovered = synErr
	return repaired, nil
}

// parseOnce runs tree-sitter on src. It returns the tree when it is free of
// errors, otherwise the first syntax error. err is reserved for failures of
// the parser itself (cancellation).
func parseOnce(ctx context.Context, p *sitter.Parser, src []byte) (*Tree, *SyntaxError, error) {
	st, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: tree-sitter parse: %w", err)
	}
	t := &Tree{
		Source: src,
		Lines:  span.NewLines(src),
		Root:   st.RootNode(),
		tree:   st,
	}
	if !t.Root.HasError() {
		return t, nil, nil
	}
	synErr := firstError(t, t.Root)
	t.Close()
	if synErr == nil {
		synErr = &SyntaxError{Message: "invalid syntax"}
	}
	return nil, synErr, nil
}

// firstError finds the first ERROR or MISSING node in document order.
func firstError(t *Tree, n *sitter.Node) *SyntaxError {
	if n.IsMissing() {
		r := t.Range(n)
		return &SyntaxError{Range: r, Message: fmt.Sprintf("missing %q", n.Type())}
	}
	if n.Type() == "ERROR" {
		r := t.Range(n)
		return &SyntaxError{Range: r, Message: unexpectedMessage(t, n)}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.HasError() && !c.IsMissing() {
			continue
		}
		if e := firstError(t, c); e != nil {
			return e
		}
	}
	return nil
}

func unexpectedMessage(t *Tree, n *sitter.Node) string {
	text := strings.TrimSpace(t.Text(n))
	if first, _, ok := strings.Cut(text, "\n"); ok {
		text = first
	}
	if len(text) > 24 {
		text = text[:24] + "..."
	}
	if text == "" {
		return "invalid syntax"
	}
	return fmt.Sprintf("invalid syntax near %q", text)
}
