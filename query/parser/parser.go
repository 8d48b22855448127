// Package parser builds an ast.Node operator tree from a query string per
// spec §4.4's precedence: whitespace = AND, "OR"/"|" = OR (looser than
// AND), a leading "-"/"NOT" negates the following term, and parentheses
// group. Mirrors the recursive-descent structure of
// ha1tch-tsqlparser's parser package, adapted to this grammar.
package parser

import (
	"fmt"

	"github.com/BjarniRunar/moggie/query/ast"
	"github.com/BjarniRunar/moggie/query/lexer"
	"github.com/BjarniRunar/moggie/query/token"
)

// Parser consumes a token stream and produces an ast.Node.
type Parser struct {
	toks []token.Token
	pos  int
}

// Parse lexes and parses s, returning its operator tree.
func Parse(s string) (ast.Node, error) {
	p := &Parser{toks: lexer.All(s)}
	if p.cur().Kind == token.EOF {
		return ast.Term{Value: "all:mail"}, nil
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.EOF {
		return nil, fmt.Errorf("query: unexpected token %q at position %d", p.cur().Value, p.cur().Pos)
	}
	return n, nil
}

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseOr := parseAnd (("OR" | "|") parseAnd)*
func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []ast.Node{left}
	for p.cur().Kind == token.OR {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	return ast.Or(args...), nil
}

// parseAnd := term+ (implicit AND over consecutive terms)
func (p *Parser) parseAnd() (ast.Node, error) {
	var args []ast.Node
	for isTermStart(p.cur().Kind) {
		n, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("query: expected a term at position %d", p.cur().Pos)
	}
	return ast.And(args...), nil
}

func isTermStart(k token.Kind) bool {
	return k == token.STRING || k == token.NOT || k == token.LPAREN
}

// term := ["-" | "NOT"] primary
func (p *Parser) parseTerm() (ast.Node, error) {
	if p.cur().Kind == token.NOT {
		p.advance()
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return ast.Not(inner), nil
	}
	return p.parsePrimary()
}

// primary := STRING | "(" parseOr ")"
func (p *Parser) parsePrimary() (ast.Node, error) {
	switch p.cur().Kind {
	case token.STRING:
		t := p.advance()
		return ast.Term{Value: t.Value}, nil
	case token.LPAREN:
		p.advance()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != token.RPAREN {
			return nil, fmt.Errorf("query: expected ')' at position %d", p.cur().Pos)
		}
		p.advance()
		return n, nil
	default:
		return nil, fmt.Errorf("query: unexpected token %q at position %d", p.cur().Value, p.cur().Pos)
	}
}
