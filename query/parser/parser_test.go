package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BjarniRunar/moggie/query/ast"
)

func TestParseSingleTerm(t *testing.T) {
	n, err := Parse("in:inbox")
	require.NoError(t, err)
	assert.Equal(t, ast.Term{Value: "in:inbox"}, n)
}

func TestParseImplicitAnd(t *testing.T) {
	n, err := Parse("in:inbox subject:hello")
	require.NoError(t, err)
	assert.Equal(t, "(in:inbox AND subject:hello)", ast.Explain(n))
}

func TestParseOr(t *testing.T) {
	n, err := Parse("a OR b")
	require.NoError(t, err)
	assert.Equal(t, "(a OR b)", ast.Explain(n))
}

func TestParseNegation(t *testing.T) {
	n, err := Parse("-in:read")
	require.NoError(t, err)
	assert.Equal(t, "NOT in:read", ast.Explain(n))
}

func TestParseAndWithNegation(t *testing.T) {
	n, err := Parse("in:inbox -in:read")
	require.NoError(t, err)
	assert.Equal(t, "(in:inbox AND NOT in:read)", ast.Explain(n))
}

func TestParseParens(t *testing.T) {
	n, err := Parse("(a OR b) c")
	require.NoError(t, err)
	assert.Equal(t, "((a OR b) AND c)", ast.Explain(n))
}

func TestParseOrLooserThanAnd(t *testing.T) {
	n, err := Parse("a b OR c")
	require.NoError(t, err)
	assert.Equal(t, "((a AND b) OR c)", ast.Explain(n))
}

func TestParseEmptyQueryDefaultsToAllMail(t *testing.T) {
	n, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, ast.Term{Value: "all:mail"}, n)
}

func TestParseUnbalancedParenErrors(t *testing.T) {
	_, err := Parse("(a b")
	assert.Error(t, err)
}

func TestParseTrailingOperatorErrors(t *testing.T) {
	_, err := Parse("a OR")
	assert.Error(t, err)
}
