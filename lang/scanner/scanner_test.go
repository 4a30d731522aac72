package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/scanner"
	"github.com/emberlang/ember/lang/token"
)

func scanAll(src string) []scanner.Lexeme {
	s := scanner.New([]byte(src))
	var out []scanner.Lexeme
	for {
		lx := s.Scan()
		out = append(out, lx)
		if lx.Kind == token.EOF {
			break
		}
	}
	return out
}

func kinds(lxs []scanner.Lexeme) []token.Token {
	ks := make([]token.Token, len(lxs))
	for i, l := range lxs {
		ks[i] = l.Kind
	}
	return ks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	lxs := scanAll("(){};,.-+/*!= == <= >= < >")
	require.Equal(t, []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.SEMI,
		token.COMMA, token.DOT, token.MINUS, token.PLUS, token.SLASH, token.STAR,
		token.BANG_EQ, token.EQ_EQ, token.LE, token.GE, token.LT, token.GT, token.EOF,
	}, kinds(lxs))
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	lxs := scanAll("let fun print return if else while for and or true false nil foo_bar")
	require.Equal(t, []token.Token{
		token.LET, token.FUN, token.PRINT, token.RETURN, token.IF, token.ELSE,
		token.WHILE, token.FOR, token.AND, token.OR, token.TRUE, token.FALSE,
		token.NIL, token.IDENT, token.EOF,
	}, kinds(lxs))
}

func TestScanNumbers(t *testing.T) {
	lxs := scanAll("123 45.67")
	require.Equal(t, token.NUMBER, lxs[0].Kind)
	require.Equal(t, "123", lxs[0].Text)
	require.Equal(t, token.NUMBER, lxs[1].Kind)
	require.Equal(t, "45.67", lxs[1].Text)
}

func TestScanString(t *testing.T) {
	lxs := scanAll(`"hello world"`)
	require.Equal(t, token.STRING, lxs[0].Kind)
	require.Equal(t, `"hello world"`, lxs[0].Text)
}

func TestScanUnterminatedString(t *testing.T) {
	lxs := scanAll(`"hello`)
	require.Equal(t, token.ERROR, lxs[0].Kind)
	require.Contains(t, lxs[0].Text, "Unterminated string")
}

func TestScanUnknownCharacter(t *testing.T) {
	lxs := scanAll("@")
	require.Equal(t, token.ERROR, lxs[0].Kind)
	require.Contains(t, lxs[0].Text, "Unexpected character")
}

func TestScanSkipsCommentsAndWhitespace(t *testing.T) {
	lxs := scanAll("// a comment\n  let // trailing\n  x = 1;")
	require.Equal(t, []token.Token{
		token.LET, token.IDENT, token.EQ, token.NUMBER, token.SEMI, token.EOF,
	}, kinds(lxs))
}

func TestScanTracksLineNumbers(t *testing.T) {
	lxs := scanAll("let a = 1;\nlet b = 2;")
	require.Equal(t, 1, lxs[0].Line)
	// "let" on the second line
	var secondLet scanner.Lexeme
	found := false
	for _, l := range lxs {
		if l.Kind == token.LET && !found {
			found = true
			continue
		}
		if l.Kind == token.LET {
			secondLet = l
			break
		}
	}
	require.Equal(t, 2, secondLet.Line)
}

func TestScanStringCannotSpanLines(t *testing.T) {
	lxs := scanAll("\"a\nb\"")
	require.Equal(t, token.ERROR, lxs[0].Kind)
	require.Contains(t, lxs[0].Text, "Unterminated string")
}
