// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sqldump

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokQuotedIdent:
		return "quoted identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	text string
	line int
	col  int

	// dquoted marks a string written with double quotes, which MySQL
	// treats as a literal and ANSI dialects as an identifier.
	dquoted bool
}

// is reports whether t is the bare keyword kw, compared case-insensitively.
func (t token) is(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) punct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

// lexer splits a SQL dump into tokens, discarding whitespace and comments.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(line, col int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

// skipSpace consumes whitespace and all comment forms, including MySQL
// versioned comments (/*!40101 ... */), which never carry row data.
func (l *lexer) skipSpace() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.advance()
		case c == '#':
			l.skipLine()
		case c == '-' && l.peekByte(1) == '-' && isCommentSpace(l.peekByte(2)):
			l.skipLine()
		case c == '/' && l.peekByte(1) == '*':
			line, col := l.line, l.col
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(line, col, "unterminated block comment")
			}
			stop := l.pos + 2 + end + 2
			for l.pos < stop {
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func isCommentSpace(c byte) bool {
	return c == 0 || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (l *lexer) skipLine() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.advance()
	}
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '\'':
		s, err := l.quoted('\'', true)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, line: line, col: col}, nil
	case c == '"':
		s, err := l.quoted('"', true)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, line: line, col: col, dquoted: true}, nil
	case c == '`':
		s, err := l.quoted('`', false)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokQuotedIdent, text: s, line: line, col: col}, nil
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return token{kind: tokNumber, text: l.number(), line: line, col: col}, nil
	case isIdentStart(l.src[l.pos:]):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos:]) {
			l.advance()
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: line, col: col}, nil
	default:
		r := l.advance()
		return token{kind: tokPunct, text: string(r), line: line, col: col}, nil
	}
}

// quoted reads a literal delimited by q. A doubled delimiter stands for
// itself; backslash escapes apply when escapes is set.
func (l *lexer) quoted(q byte, escapes bool) (string, error) {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == q:
			if l.peekByte(1) == q {
				b.WriteByte(q)
				l.advance()
				l.advance()
				continue
			}
			l.advance()
			return b.String(), nil
		case c == '\\' && escapes:
			if l.pos+1 >= len(l.src) {
				return "", l.errorf(line, col, "unterminated literal")
			}
			l.advance()
			e := l.src[l.pos]
			l.advance()
			switch e {
			case '0':
				b.WriteByte(0)
			case 'b':
				b.WriteByte('\b')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'Z':
				b.WriteByte(0x1a)
			case '%', '_':
				b.WriteByte('\\')
				b.WriteByte(e)
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteRune(l.advance())
		}
	}
	return "", l.errorf(line, col, "unterminated literal")
}

func (l *lexer) number() string {
	start := l.pos
	if l.src[l.pos] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.advance()
		l.advance()
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.advance()
		}
		return l.src[start:l.pos]
	}
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.advance()
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		n := 1
		if s := l.peekByte(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peekByte(n)) {
			for i := 0; i < n; i++ {
				l.advance()
			}
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.advance()
			}
		}
	}
	return l.src[start:l.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
