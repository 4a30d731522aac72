// Package scanner tokenizes Ember source text on demand. It has no
// dependency on the compiler: each call to Scan produces exactly one
// Lexeme, and the scanner retains just enough state (a cursor into the
// source and the current line) to keep doing that until EOF.
package scanner

import (
	"github.com/emberlang/ember/lang/token"
)

// Lexeme is a single scanned token: its kind, its source text (copied out
// of the source buffer), and the source line it starts on.
// ERROR lexemes carry a human-readable message in place of source text.
type Lexeme struct {
	Kind token.Token
	Text string
	Line int
}

// Scanner produces Lexemes from a source buffer on demand.
type Scanner struct {
	src     []byte
	start   int // offset of the lexeme currently being scanned
	current int // offset of the next unread byte
	line    int
}

// New creates a Scanner over src. Line numbers start at 1.
func New(src []byte) *Scanner {
	return &Scanner{src: src, line: 1}
}

// Scan returns the next Lexeme in the source, advancing the scanner. Once
// EOF has been returned, further calls keep returning EOF.
func (s *Scanner) Scan() Lexeme {
	s.skipWhitespaceAndComments()
	s.start = s.current

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()
	switch {
	case isAlpha(c):
		return s.identifier()
	case isDigit(c):
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LPAREN)
	case ')':
		return s.make(token.RPAREN)
	case '{':
		return s.make(token.LBRACE)
	case '}':
		return s.make(token.RBRACE)
	case ';':
		return s.make(token.SEMI)
	case ',':
		return s.make(token.COMMA)
	case '.':
		return s.make(token.DOT)
	case '-':
		return s.make(token.MINUS)
	case '+':
		return s.make(token.PLUS)
	case '/':
		return s.make(token.SLASH)
	case '*':
		return s.make(token.STAR)
	case '!':
		return s.make(s.pick('=', token.BANG_EQ, token.BANG))
	case '=':
		return s.make(s.pick('=', token.EQ_EQ, token.EQ))
	case '<':
		return s.make(s.pick('=', token.LE, token.LT))
	case '>':
		return s.make(s.pick('=', token.GE, token.GT))
	case '"':
		return s.string()
	}

	return s.errorf("Unexpected character.")
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.src) }

func (s *Scanner) advance() byte {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

// pick implements the classic two-char lookahead: if the next byte matches
// expected, consumes it and returns twoKind, else returns oneKind.
func (s *Scanner) pick(expected byte, twoKind, oneKind token.Token) token.Token {
	if s.atEnd() || s.src[s.current] != expected {
		return oneKind
	}
	s.current++
	return twoKind
}

func (s *Scanner) skipWhitespaceAndComments() {
	for {
		if s.atEnd() {
			return
		}
		switch c := s.src[s.current]; c {
		case ' ', '\r', '\t':
			s.current++
		case '\n':
			s.line++
			s.current++
		case '/':
			if s.peekNext() == '/' {
				for !s.atEnd() && s.src[s.current] != '\n' {
					s.current++
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func (s *Scanner) identifier() Lexeme {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.current++
	}
	text := string(s.src[s.start:s.current])
	if kind, ok := token.Keywords[text]; ok {
		return s.make(kind)
	}
	return s.make(token.IDENT)
}

func (s *Scanner) number() Lexeme {
	for isDigit(s.peek()) {
		s.current++
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.current++
		for isDigit(s.peek()) {
			s.current++
		}
	}
	return s.make(token.NUMBER)
}

// string scans a double-quoted, single-line string literal starting after
// the opening quote. A newline or EOF before the closing quote is reported
// as an unterminated string.
func (s *Scanner) string() Lexeme {
	for !s.atEnd() && s.src[s.current] != '"' && s.src[s.current] != '\n' {
		s.current++
	}
	if s.atEnd() || s.src[s.current] == '\n' {
		return s.errorf("Unterminated string.")
	}
	s.current++ // closing quote
	return s.make(token.STRING)
}

func (s *Scanner) make(kind token.Token) Lexeme {
	return Lexeme{Kind: kind, Text: string(s.src[s.start:s.current]), Line: s.line}
}

func (s *Scanner) errorf(msg string) Lexeme {
	return Lexeme{Kind: token.ERROR, Text: msg, Line: s.line}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
