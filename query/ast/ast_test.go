package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplainTerm(t *testing.T) {
	assert.Equal(t, "in:inbox", Explain(Term{Value: "in:inbox"}))
}

func TestExplainAndOr(t *testing.T) {
	n := And(Term{Value: "a"}, Or(Term{Value: "b"}, Term{Value: "c"}))
	assert.Equal(t, "(a AND (b OR c))", Explain(n))
}

func TestExplainNot(t *testing.T) {
	n := Not(Term{Value: "in:read"})
	assert.Equal(t, "NOT in:read", Explain(n))
}

func TestAndOrCollapseSingleArg(t *testing.T) {
	assert.Equal(t, Term{Value: "a"}, And(Term{Value: "a"}))
	assert.Equal(t, Term{Value: "a"}, Or(Term{Value: "a"}))
}
