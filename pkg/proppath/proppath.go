// Package proppath lexes property paths such as a.b[0]['c'] into the ordered
// list of keys they address.
package proppath

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MalformedPathError reports a path that does not match the path grammar.
// Index is the byte offset of the offending character.
type MalformedPathError struct {
	Path     string
	Index    int
	Expected string
	Got      string
}

// Error renders the path, a caret line pointing at Index and the
// expected/got message, one per line.
func (e *MalformedPathError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Path)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("-", e.Index))
	sb.WriteString("^\n")
	sb.WriteString("expected ")
	sb.WriteString(e.Expected)
	sb.WriteString(", got ")
	sb.WriteString(e.Got)
	return sb.String()
}

// Message returns only the expected/got part of the error.
func (e *MalformedPathError) Message() string {
	return "expected " + e.Expected + ", got " + e.Got
}

func malformed(path string, i int, expected string) *MalformedPathError {
	return &MalformedPathError{
		Path:     path,
		Index:    i,
		Expected: expected,
		Got:      describe(path, i),
	}
}

func describe(path string, i int) string {
	if i >= len(path) {
		return "end of path"
	}
	r, _ := utf8.DecodeRuneInString(path[i:])
	return strconv.QuoteRune(r)
}

func isIdentStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_' || c == '$'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// Tokenize splits path into its segments. The first segment may be numeric;
// later dot segments must be identifiers; bracket segments hold either a
// signed integer or a quoted string in which a backslash escapes the next
// character. On failure nothing but the error is returned.
func Tokenize(path string) ([]string, error) {
	n := scanWhile(path, 0, isIdentChar)
	if n == 0 {
		return nil, malformed(path, 0, "identifier")
	}
	tokens := make([]string, 0, 1+strings.Count(path, ".")+strings.Count(path, "["))
	tokens = append(tokens, path[:n])

	i := n
	for i < len(path) {
		var (
			width int
			tok   string
			err   *MalformedPathError
		)
		switch path[i] {
		case '.':
			width, tok, err = scanDot(path, i)
		case '[':
			width, tok, err = scanBracket(path, i)
		default:
			return nil, malformed(path, i, "'.' or '['")
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		i += width
	}
	return tokens, nil
}

// MustTokenize is like Tokenize but panics if path is malformed.
func MustTokenize(path string) []string {
	tokens, err := Tokenize(path)
	if err != nil {
		panic(err)
	}
	return tokens
}

func scanWhile(path string, start int, pred func(byte) bool) int {
	i := start
	for i < len(path) && pred(path[i]) {
		i++
	}
	return i - start
}

// scanDot lexes '.' identifier starting at the dot.
func scanDot(path string, dot int) (int, string, *MalformedPathError) {
	start := dot + 1
	if start >= len(path) || !isIdentStart(path[start]) {
		return 0, "", malformed(path, start, "identifier")
	}
	n := 1 + scanWhile(path, start+1, isIdentChar)
	return 1 + n, path[start : start+n], nil
}

// scanBracket lexes a bracket segment starting at the '['.
func scanBracket(path string, open int) (int, string, *MalformedPathError) {
	i := open + 1
	if i >= len(path) {
		return 0, "", malformed(path, i, "number or quote")
	}

	var tok string
	switch c := path[i]; {
	case c == '"' || c == '\'':
		end, body, err := scanQuoted(path, i)
		if err != nil {
			return 0, "", err
		}
		tok = body
		i = end + 1
	case isDigit(c) || (c == '-' || c == '+') && i+1 < len(path) && isDigit(path[i+1]):
		start := i
		if !isDigit(c) {
			i++
		}
		i += scanWhile(path, i, isDigit)
		tok = path[start:i]
	default:
		return 0, "", malformed(path, i, "number or quote")
	}

	if i >= len(path) || path[i] != ']' {
		return 0, "", malformed(path, i, "']'")
	}
	i++
	if i < len(path) && path[i] != '.' && path[i] != '[' {
		return 0, "", malformed(path, i, "'.', '[' or end of path")
	}
	return i - open, tok, nil
}

// scanQuoted scans a string whose opening quote is at path[q]. It returns the
// index of the closing quote and the unescaped body.
func scanQuoted(path string, q int) (int, string, *MalformedPathError) {
	quote := path[q]
	var sb strings.Builder
	i := q + 1
	for i < len(path) {
		switch c := path[i]; c {
		case '\\':
			if i+1 >= len(path) {
				return 0, "", malformed(path, i+1, "escaped character")
			}
			sb.WriteByte(path[i+1])
			i += 2
		case quote:
			return i, sb.String(), nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return 0, "", malformed(path, i, "closing "+strconv.QuoteRune(rune(quote)))
}

// Join renders segments as a path that Tokenize maps back to segments.
// Identifiers use dot notation, integers use brackets, anything else is
// single-quoted. The first segment is written bare, so it must be made of
// identifier characters or digits.
func Join(segments []string) string {
	var sb strings.Builder
	for i, seg := range segments {
		switch {
		case i == 0:
			sb.WriteString(seg)
		case isIdentifier(seg):
			sb.WriteByte('.')
			sb.WriteString(seg)
		case isInteger(seg):
			sb.WriteByte('[')
			sb.WriteString(seg)
			sb.WriteByte(']')
		default:
			sb.WriteString("['")
			for j := 0; j < len(seg); j++ {
				if seg[j] == '\'' || seg[j] == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteByte(seg[j])
			}
			sb.WriteString("']")
		}
	}
	return sb.String()
}

func isIdentifier(s string) bool {
	return s != "" && isIdentStart(s[0]) && scanWhile(s, 1, isIdentChar) == len(s)-1
}

func isInteger(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	return s != "" && scanWhile(s, 0, isDigit) == len(s)
}
