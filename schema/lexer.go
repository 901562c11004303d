package schema

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokPunct
)

type token struct {
	text string
	line int
	kind tokenKind
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits WIT text into identifiers and punctuation, dropping comments.
func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unterminated block comment", line)
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4
		case strings.HasPrefix(src[i:], "->"):
			toks = append(toks, token{kind: tokPunct, text: "->", line: line})
			i += 2
		case strings.ContainsRune("{}()<>:;,=@./", rune(c)):
			toks = append(toks, token{kind: tokPunct, text: string(c), line: line})
			i++
		case c == '%' || isIdentStart(rune(c)):
			start := i
			i++
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.TrimPrefix(src[start:i], "%"), line: line})
		default:
			return nil, fmt.Errorf("line %d: unexpected character %q", line, c)
		}
	}
	return append(toks, token{kind: tokEOF, line: line}), nil
}

func isIdentStart(r rune) bool {
	return r != '-' && isIdentPart(r)
}

func isIdentPart(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
}
