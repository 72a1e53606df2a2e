package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent         // lowercase identifier: predicate or symbol
	tokVar           // capitalized or _-prefixed identifier
	tokInt
	tokString
	tokLParen
	tokRParen
	tokComma
	tokPeriod
	tokImplies // :-
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokVar:
		return "variable"
	case tokInt:
		return "integer"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokPeriod:
		return "'.'"
	case tokImplies:
		return "':-'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string // identifier name, integer digits, or decoded string value
	line int
	col  int
}

// lexer splits rule source into tokens. % starts a comment running to end of line.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) peekRune() (rune, int) {
	if l.pos >= len(l.src) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *lexer) advance() rune {
	r, size := l.peekRune()
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) errorf(line, col int, msg string) *ParseError {
	return &ParseError{Line: line, Column: col, Fragment: fragmentAt(l.src, l.pos), Message: msg}
}

// fragmentAt returns up to 20 bytes of source starting at pos, cut at a newline.
func fragmentAt(src string, pos int) string {
	if pos >= len(src) {
		return ""
	}
	end := min(pos+20, len(src))
	frag := src[pos:end]
	if i := strings.IndexByte(frag, '\n'); i >= 0 {
		frag = frag[:i]
	}
	return frag
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		r, _ := l.peekRune()
		switch {
		case r == '%':
			for l.pos < len(l.src) {
				if c, _ := l.peekRune(); c == '\n' {
					break
				}
				l.advance()
			}
		case unicode.IsSpace(r):
			l.advance()
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	r, _ := l.peekRune()
	switch {
	case r == '(':
		l.advance()
		return token{kind: tokLParen, line: line, col: col}, nil
	case r == ')':
		l.advance()
		return token{kind: tokRParen, line: line, col: col}, nil
	case r == ',':
		l.advance()
		return token{kind: tokComma, line: line, col: col}, nil
	case r == '.':
		l.advance()
		return token{kind: tokPeriod, line: line, col: col}, nil
	case r == ':':
		l.advance()
		if c, _ := l.peekRune(); c != '-' {
			return token{}, l.errorf(line, col, "expected ':-'")
		}
		l.advance()
		return token{kind: tokImplies, line: line, col: col}, nil
	case r == '"':
		return l.lexString(line, col)
	case r == '-' || isDigit(r):
		return l.lexInt(line, col)
	case r == '_' || unicode.IsLetter(r):
		start := l.pos
		for l.pos < len(l.src) {
			c, _ := l.peekRune()
			if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
				break
			}
			l.advance()
		}
		word := l.src[start:l.pos]
		kind := tokIdent
		if r == '_' || unicode.IsUpper(r) {
			kind = tokVar
		}
		return token{kind: kind, text: word, line: line, col: col}, nil
	}
	return token{}, l.errorf(line, col, "unexpected character "+string(r))
}

func (l *lexer) lexInt(line, col int) (token, error) {
	start := l.pos
	if r, _ := l.peekRune(); r == '-' {
		l.advance()
	}
	digits := 0
	for l.pos < len(l.src) {
		r, _ := l.peekRune()
		if !isDigit(r) {
			break
		}
		l.advance()
		digits++
	}
	if digits == 0 {
		return token{}, l.errorf(line, col, "expected digits after '-'")
	}
	return token{kind: tokInt, text: l.src[start:l.pos], line: line, col: col}, nil
}

func (l *lexer) lexString(line, col int) (token, error) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, &ParseError{Line: line, Column: col, Message: "unterminated string"}
		}
		r := l.advance()
		switch r {
		case '"':
			return token{kind: tokString, text: b.String(), line: line, col: col}, nil
		case '\n':
			return token{}, &ParseError{Line: line, Column: col, Message: "newline in string"}
		case '\\':
			if l.pos >= len(l.src) {
				return token{}, &ParseError{Line: line, Column: col, Message: "unterminated string"}
			}
			esc := l.advance()
			switch esc {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				return token{}, l.errorf(l.line, l.col-2, "unknown escape \\"+string(esc))
			}
		default:
			b.WriteRune(r)
		}
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
