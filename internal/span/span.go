// Package span defines source positions and ranges.
//
// Lines are 1-based. Columns are 0-based and count UTF-8 code points, not
// bytes. Ranges are half-open: End is the first position past the range.
package span

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Position is a point in the source.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Compare returns -1, 0 or +1 depending on whether p sorts before, equal to
// or after q.
func (p Position) Compare(q Position) int {
	switch {
	case p.Line < q.Line:
		return -1
	case p.Line > q.Line:
		return 1
	case p.Col < q.Col:
		return -1
	case p.Col > q.Col:
		return 1
	}
	return 0
}

// Less reports whether p sorts before q.
func (p Position) Less(q Position) bool { return p.Compare(q) < 0 }

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// ParsePosition parses "line:col".
func ParsePosition(s string) (Position, error) {
	line, col, ok := strings.Cut(s, ":")
	if !ok {
		return Position{}, fmt.Errorf("position %q: expected line:col", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil || l < 1 {
		return Position{}, fmt.Errorf("position %q: invalid line", s)
	}
	c, err := strconv.Atoi(col)
	if err != nil || c < 0 {
		return Position{}, fmt.Errorf("position %q: invalid column", s)
	}
	return Position{Line: l, Col: c}, nil
}

// Range is a half-open source range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// New builds a range from its four coordinates.
func New(startLine, startCol, endLine, endCol int) Range {
	return Range{
		Start: Position{Line: startLine, Col: startCol},
		End:   Position{Line: endLine, Col: endCol},
	}
}

// IsZero reports whether r is the zero Range.
func (r Range) IsZero() bool { return r == Range{} }

// Valid reports whether Start <= End.
func (r Range) Valid() bool { return r.Start.Compare(r.End) <= 0 }

// Contains reports whether p lies within r.
func (r Range) Contains(p Position) bool {
	return r.Start.Compare(p) <= 0 && p.Compare(r.End) < 0
}

// Compare orders ranges by start, then by end.
func (r Range) Compare(o Range) int {
	if c := r.Start.Compare(o.Start); c != 0 {
		return c
	}
	return r.End.Compare(o.End)
}

// Union returns the smallest range enclosing both r and o. The zero Range
// is the identity.
func (r Range) Union(o Range) Range {
	if r.IsZero() {
		return o
	}
	if o.IsZero() {
		return r
	}
	out := r
	if o.Start.Less(out.Start) {
		out.Start = o.Start
	}
	if out.End.Less(o.End) {
		out.End = o.End
	}
	return out
}

// OverlapsLines reports whether r touches any line in [first, last].
func (r Range) OverlapsLines(first, last int) bool {
	return r.Start.Line <= last && r.End.Line >= first
}

func (r Range) String() string {
	if r.Start.Line == r.End.Line {
		return fmt.Sprintf("%d:%d-%d", r.Start.Line, r.Start.Col, r.End.Col)
	}
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Lines indexes source text by line so that byte offsets reported by the
// parser can be turned into code point columns and back.
type Lines struct {
	src    []byte
	starts []int
}

// NewLines indexes src.
func NewLines(src []byte) *Lines {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{src: src, starts: starts}
}

// Count returns the number of lines. Empty text has one (empty) line.
func (l *Lines) Count() int { return len(l.starts) }

// Line returns the text of 1-based line n without its newline.
func (l *Lines) Line(n int) string {
	if n < 1 || n > len(l.starts) {
		return ""
	}
	start := l.starts[n-1]
	end := len(l.src)
	if n < len(l.starts) {
		end = l.starts[n] - 1
	}
	line := l.src[start:end]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return string(line)
}

// Position converts a 0-based row and byte column into a Position.
func (l *Lines) Position(row, byteCol int) Position {
	p := Position{Line: row + 1}
	if row < 0 || row >= len(l.starts) {
		return p
	}
	start := l.starts[row]
	end := start + byteCol
	if end > len(l.src) {
		end = len(l.src)
	}
	p.Col = utf8.RuneCount(l.src[start:end])
	return p
}

// ByteCol converts p's code point column into a byte column on its line.
func (l *Lines) ByteCol(p Position) int {
	line := l.Line(p.Line)
	col := 0
	for i := range line {
		if col == p.Col {
			return i
		}
		col++
	}
	return len(line)
}

// Offset converts p into a byte offset into the indexed text. Positions
// past the end of a line clamp to the line end.
func (l *Lines) Offset(p Position) int {
	if p.Line < 1 {
		return 0
	}
	if p.Line > len(l.starts) {
		return len(l.src)
	}
	return l.starts[p.Line-1] + l.ByteCol(p)
}
