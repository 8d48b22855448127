package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BjarniRunar/moggie/query/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexSimpleTerms(t *testing.T) {
	toks := All("in:inbox subject:hello")
	assert.Equal(t, []token.Kind{token.STRING, token.STRING, token.EOF}, kinds(toks))
	assert.Equal(t, "in:inbox", toks[0].Value)
	assert.Equal(t, "subject:hello", toks[1].Value)
}

func TestLexNegation(t *testing.T) {
	toks := All("-in:read")
	assert.Equal(t, []token.Kind{token.NOT, token.STRING, token.EOF}, kinds(toks))
	assert.Equal(t, "in:read", toks[1].Value)
}

func TestLexOrPipeAndWord(t *testing.T) {
	toks := All("a OR b | c")
	assert.Equal(t, []token.Kind{token.STRING, token.OR, token.STRING, token.OR, token.STRING, token.EOF}, kinds(toks))
}

func TestLexParens(t *testing.T) {
	toks := All("(a b)")
	assert.Equal(t, []token.Kind{token.LPAREN, token.STRING, token.STRING, token.RPAREN, token.EOF}, kinds(toks))
}

func TestLexQuotedString(t *testing.T) {
	toks := All(`"hello world"`)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Value)
}

func TestLexDateKeywordKeepsHyphens(t *testing.T) {
	toks := All("date:2026-03-05")
	assert.Equal(t, "date:2026-03-05", toks[0].Value)
}
