package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// bracket is an opening bracket still waiting for its closer.
type bracket struct {
	char byte
	line int // 0-based
	col  int // byte column
}

// openString is a string literal that never terminated.
type openString struct {
	quote  string
	line   int
	triple bool
}

// scanResult summarises the lexical state of a text: the brackets and
// strings left open at the end, stray closers, and per line the byte offset
// where code ends (comments and trailing blanks excluded).
type scanResult struct {
	open       []bracket
	stray      []bracket
	unclosed   []openString // single-line strings cut by a newline
	tripleOpen *openString
	codeEnd    []int
}

var closerFor = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// scan walks src as Python tokens without building them: enough to know
// where strings, comments and brackets are.
func scan(lines []string) scanResult {
	var res scanResult
	res.codeEnd = make([]int, len(lines))

	var triple *openString
	for li, line := range lines {
		end := 0
		i := 0
		if triple != nil {
			idx := findQuote(line, 0, triple.quote)
			if idx < 0 {
				res.codeEnd[li] = len(line)
				continue
			}
			i = idx + 3
			end = i
			triple = nil
		}
		for i < len(line) {
			c := line[i]
			switch {
			case c == '#':
				i = len(line)
				continue
			case c == '"' || c == '\'':
				q := string(c)
				if strings.HasPrefix(line[i:], q+q+q) {
					q = q + q + q
					closeAt := findQuote(line, i+3, q)
					if closeAt < 0 {
						triple = &openString{quote: q, line: li, triple: true}
						i = len(line)
						end = len(line)
						continue
					}
					i = closeAt + 3
					end = i
					continue
				}
				closeAt := findQuote(line, i+1, q)
				if closeAt < 0 {
					if strings.HasSuffix(line, "\\") {
						// Backslash continuation inside a string; treat the
						// rest of the line as string content.
						i = len(line)
						end = i
						continue
					}
					res.unclosed = append(res.unclosed, openString{quote: q, line: li})
					i = len(line)
					end = i
					continue
				}
				i = closeAt + 1
				end = i
				continue
			case c == '(' || c == '[' || c == '{':
				res.open = append(res.open, bracket{char: c, line: li, col: i})
			case c == ')' || c == ']' || c == '}':
				if n := len(res.open); n > 0 && closerFor[res.open[n-1].char] == c {
					res.open = res.open[:n-1]
				} else {
					res.stray = append(res.stray, bracket{char: c, line: li, col: i})
				}
			}
			if c != ' ' && c != '\t' && c != '\f' && c != '\r' {
				end = i + 1
			}
			i++
		}
		res.codeEnd[li] = end
	}
	res.tripleOpen = triple
	return res
}

func findQuote(line string, from int, q string) int {
	for i := from; i < len(line); i++ {
		if line[i] == '\\' {
			i++
			continue
		}
		if strings.HasPrefix(line[i:], q) {
			return i
		}
	}
	return -1
}

// indentOf returns the leading whitespace of line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t\f"))]
}

// isBlank reports whether line carries no code.
func isBlank(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || strings.HasPrefix(t, "#")
}

// token is a lexical token on a single line, used when rewriting one
// offending line.
type token struct {
	text  string
	start int // byte column
	ident bool
}

// lineTokens splits a line into identifiers, strings, numbers and
// operators. Comments end the scan.
func lineTokens(line string) []token {
	var toks []token
	i := 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		switch {
		case r == '#':
			return toks
		case unicode.IsSpace(r):
			i += size
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(line) {
				r, size = utf8.DecodeRuneInString(line[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			word := line[start:i]
			if i < len(line) && (line[i] == '"' || line[i] == '\'') && isStringPrefix(word) {
				end := skipString(line, i)
				toks = append(toks, token{text: line[start:end], start: start})
				i = end
				continue
			}
			toks = append(toks, token{text: word, start: start, ident: true})
		case r == '"' || r == '\'':
			end := skipString(line, i)
			toks = append(toks, token{text: line[i:end], start: i})
			i = end
		case unicode.IsDigit(r):
			start := i
			for i < len(line) && (isDigitByte(line[i]) || line[i] == '.' || line[i] == '_' || isLetterByte(line[i])) {
				i++
			}
			toks = append(toks, token{text: line[start:i], start: start})
		default:
			toks = append(toks, token{text: line[i : i+size], start: i})
			i += size
		}
	}
	return toks
}

func skipString(line string, i int) int {
	q := line[i : i+1]
	if strings.HasPrefix(line[i:], q+q+q) {
		if at := findQuote(line, i+3, q+q+q); at >= 0 {
			return at + 3
		}
		return len(line)
	}
	if at := findQuote(line, i+1, q); at >= 0 {
		return at + 1
	}
	return len(line)
}

func isStringPrefix(w string) bool {
	switch strings.ToLower(w) {
	case "r", "u", "f", "b", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func isDigitByte(b byte) bool  { return b >= '0' && b <= '9' }
func isLetterByte(b byte) bool { return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' }
