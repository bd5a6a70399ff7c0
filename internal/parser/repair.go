package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/shade/internal/pylang"
)

// fix patches lines around a syntax error. ok is false when the fix does not
// apply; lines itself is never modified.
type fix func(lines []string, at *SyntaxError) (patched []string, ok bool)

// fixes are tried in order each round. Cheap, local patches come first; the
// destructive ones (rewriting or blanking a line) last.
var fixes = []fix{
	closeOpen,
	dropDanglingOperator,
	completeBlockHeader,
	keepNamesOnly,
	blankLine,
}

// repair patches src until it parses or rounds run out. A round succeeds
// when a fix yields a clean parse or moves the first error further down the
// text. A nil tree with a nil error means the text could not be repaired.
func repair(ctx context.Context, p *sitter.Parser, src []byte, synErr *SyntaxError, rounds int) (*Tree, error) {
	lines := strings.Split(string(src), "\n")
	cur := synErr
	for round := 0; round < rounds; round++ {
		progressed := false
		for _, f := range fixes {
			patched, ok := f(lines, cur)
			if !ok {
				continue
			}
			t, next, err := parseOnce(ctx, p, []byte(strings.Join(patched, "\n")))
			if err != nil {
				return nil, err
			}
			if next == nil {
				return t, nil
			}
			if cur.Range.Start.Less(next.Range.Start) {
				lines, cur = patched, next
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, nil
		}
	}
	return nil, nil
}

// offendingLine maps the error to the 0-based index of the line to patch.
// Errors reported at a blank line or past the end (a MISSING token at EOF)
// belong to the last line carrying code before it.
func offendingLine(lines []string, at *SyntaxError) int {
	li := at.Range.Start.Line - 1
	if li >= len(lines) {
		li = len(lines) - 1
	}
	for li > 0 && isBlank(lines[li]) {
		li--
	}
	if li < 0 {
		li = 0
	}
	return li
}

// prevCodeLine returns the nearest line before li that carries code, or -1.
func prevCodeLine(lines []string, li int) int {
	for j := li - 1; j >= 0; j-- {
		if !isBlank(lines[j]) {
			return j
		}
	}
	return -1
}

// nextCodeLine returns the nearest line after li that carries code, or -1.
func nextCodeLine(lines []string, li int) int {
	for j := li + 1; j < len(lines); j++ {
		if !isBlank(lines[j]) {
			return j
		}
	}
	return -1
}

func clone(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// closeOpen terminates unterminated strings and unbalanced brackets. Open
// brackets are closed at the end of the logical line they started, which is
// the last code line before the next line indented no deeper than the
// opener's line.
func closeOpen(lines []string, _ *SyntaxError) ([]string, bool) {
	res := scan(lines)
	out := clone(lines)

	switch {
	case len(res.unclosed) > 0:
		u := res.unclosed[0]
		out[u.line] = strings.TrimRight(out[u.line], "\r") + u.quote
		return out, true
	case res.tripleOpen != nil:
		last := len(out) - 1
		out[last] += res.tripleOpen.quote
		return out, true
	case len(res.stray) > 0:
		s := res.stray[0]
		line := out[s.line]
		out[s.line] = line[:s.col] + " " + line[s.col+1:]
		return out, true
	case len(res.open) == 0:
		return nil, false
	}

	outer := res.open[0]
	depth := len(indentOf(lines[outer.line]))
	stop := len(lines)
	for j := outer.line + 1; j < len(lines); j++ {
		if isBlank(lines[j]) {
			continue
		}
		if len(indentOf(lines[j])) <= depth && !startsWithCloser(lines[j]) {
			stop = j
			break
		}
	}
	at := outer.line
	for j := stop - 1; j > outer.line; j-- {
		if !isBlank(lines[j]) {
			at = j
			break
		}
	}

	var closers []byte
	for i := len(res.open) - 1; i >= 0; i-- {
		if res.open[i].line < stop {
			closers = append(closers, closerFor[res.open[i].char])
		}
	}
	line := lines[at]
	end := res.codeEnd[at]
	code := trimDangling(line[:end])
	out[at] = code + string(closers) + line[end:]
	return out, true
}

func startsWithCloser(line string) bool {
	t := strings.TrimLeft(line, " \t\f")
	return t != "" && (t[0] == ')' || t[0] == ']' || t[0] == '}')
}

// danglingOperators are the trailing tokens that cannot end an expression.
const danglingOperators = "+-*/%@&|^~<>=.!\\"

var danglingKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"if": true, "else": true, "lambda": true, "await": true, "del": true,
	"assert": true, "import": true, "from": true, "as": true,
	"global": true, "nonlocal": true,
}

// trimDangling strips trailing operators and operator keywords from a code
// fragment, keeping its trailing whitespace out.
func trimDangling(code string) string {
	for {
		trimmed := strings.TrimRight(code, " \t\f\r")
		if trimmed == "" {
			return trimmed
		}
		if strings.ContainsRune(danglingOperators, rune(trimmed[len(trimmed)-1])) {
			code = trimmed[:len(trimmed)-1]
			continue
		}
		toks := lineTokens(trimmed)
		if n := len(toks); n > 0 && toks[n-1].ident && danglingKeywords[toks[n-1].text] {
			code = trimmed[:toks[n-1].start]
			continue
		}
		return trimmed
	}
}

// dropDanglingOperator removes an expression left hanging at the end of the
// offending line or the code line before it, e.g. "x = a +" or "self.".
func dropDanglingOperator(lines []string, at *SyntaxError) ([]string, bool) {
	res := scan(lines)
	li := offendingLine(lines, at)
	for _, cand := range []int{li, prevCodeLine(lines, li)} {
		if cand < 0 {
			continue
		}
		line := lines[cand]
		end := res.codeEnd[cand]
		code := line[:end]
		trimmed := trimDangling(code)
		if trimmed == strings.TrimRight(code, " \t\f\r") {
			continue
		}
		out := clone(lines)
		if strings.TrimSpace(trimmed) == "" {
			out[cand] = indentOf(line) + "pass" + line[end:]
		} else {
			out[cand] = trimmed + line[end:]
		}
		return out, true
	}
	return nil, false
}

var blockKeywords = map[string]bool{
	"def": true, "class": true, "if": true, "elif": true, "else": true,
	"for": true, "while": true, "with": true, "try": true, "except": true,
	"finally": true, "async": true,
}

// completeBlockHeader adds the missing colon or body of a compound
// statement header such as "def f(x)" or "if x:" at the end of a buffer.
func completeBlockHeader(lines []string, at *SyntaxError) ([]string, bool) {
	res := scan(lines)
	li := offendingLine(lines, at)
	for _, cand := range []int{li, prevCodeLine(lines, li)} {
		if cand < 0 {
			continue
		}
		line := lines[cand]
		end := res.codeEnd[cand]
		code := line[:end]
		toks := lineTokens(code)
		if len(toks) == 0 {
			continue
		}
		header := toks[0].ident && blockKeywords[toks[0].text]
		hasColon := strings.HasSuffix(code, ":")
		if !header && !hasColon {
			continue
		}

		needsBody := true
		if next := nextCodeLine(lines, cand); next >= 0 {
			needsBody = len(indentOf(lines[next])) <= len(indentOf(line))
		}
		patch := code
		if !hasColon {
			patch += ":"
		}
		if needsBody {
			patch += " pass"
		}
		if patch == code {
			continue
		}
		out := clone(lines)
		out[cand] = patch + line[end:]
		return out, true
	}
	return nil, false
}

// keepNamesOnly rewrites the offending line so that only its names survive,
// at their original columns, joined by '+'. Dotted chains stay intact.
// "a  a = b in" becomes "a+  a+  b" with the names still at 0, 3 and 7.
func keepNamesOnly(lines []string, at *SyntaxError) ([]string, bool) {
	li := offendingLine(lines, at)
	line := lines[li]
	toks := lineTokens(line)

	type group struct{ start, end int }
	var groups []group
	for i := 0; i < len(toks); i++ {
		tk := toks[i]
		if !tk.ident || pylang.IsKeyword(tk.text) {
			continue
		}
		g := group{start: tk.start, end: tk.start + len(tk.text)}
		// Extend over ".name" pairs.
		for i+2 < len(toks) && toks[i+1].text == "." && toks[i+1].start == g.end &&
			toks[i+2].ident && !pylang.IsKeyword(toks[i+2].text) && toks[i+2].start == g.end+1 {
			g.end = toks[i+2].start + len(toks[i+2].text)
			i += 2
		}
		groups = append(groups, g)
	}

	indent := indentOf(line)
	if len(groups) == 0 {
		if strings.TrimSpace(line) == "pass" {
			return nil, false
		}
		out := clone(lines)
		out[li] = indent + "pass"
		return out, true
	}

	buf := []byte(strings.Repeat(" ", len(line)))
	copy(buf, indent)
	for gi, g := range groups {
		copy(buf[g.start:g.end], line[g.start:g.end])
		if gi == 0 {
			continue
		}
		// The gap before every group after the first holds at least one
		// byte (tokens never touch), so the joining '+' always fits.
		buf[groups[gi-1].end] = '+'
	}
	rewritten := strings.TrimRight(string(buf), " ")
	if rewritten == line {
		return nil, false
	}
	out := clone(lines)
	out[li] = rewritten
	return out, true
}

// blankLine replaces the offending line with a pass statement at the same
// indentation.
func blankLine(lines []string, at *SyntaxError) ([]string, bool) {
	li := offendingLine(lines, at)
	line := lines[li]
	repl := indentOf(line) + "pass"
	if line == repl || isBlank(line) {
		return nil, false
	}
	out := clone(lines)
	out[li] = repl
	return out, true
}
