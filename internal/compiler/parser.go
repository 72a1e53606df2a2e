package compiler

import (
	"fmt"
	"strconv"

	"github.com/roach88/factlog/internal/ir"
)

// parser is a recursive-descent parser over the clause grammar:
//
//	clause  := literal [ ":-" body ] "."
//	body    := bodyLit { "," bodyLit }
//	bodyLit := [ "not" ] literal
//	literal := ident [ "(" [ arg { "," arg } ] ")" ]
//	arg     := int | string | ident | variable
type parser struct {
	lex  *lexer
	tok  token
	anon int // counter for fresh anonymous variables, reset per clause
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Line:     p.tok.line,
		Column:   p.tok.col,
		Fragment: p.tokenText(),
		Message:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) tokenText() string {
	switch p.tok.kind {
	case tokIdent, tokVar, tokInt:
		return p.tok.text
	case tokString:
		return ir.QuoteText(p.tok.text)
	case tokEOF:
		return ""
	}
	return p.tok.kind.String()
}

func (p *parser) expect(kind tokenKind) error {
	if p.tok.kind != kind {
		return p.errorf("expected %s, found %s", kind, p.tok.kind)
	}
	return p.advance()
}

// clause is one parsed statement before it is classified as rule or fact.
type clause struct {
	head ir.Literal
	body []ir.Literal
	line int
}

func (p *parser) parseClause() (clause, error) {
	p.anon = 0
	line := p.tok.line
	if p.tok.kind == tokIdent && p.tok.text == "not" {
		return clause{}, p.errorf("clause head cannot be negated")
	}
	head, err := p.parseLiteral(ir.Positive)
	if err != nil {
		return clause{}, err
	}
	c := clause{head: head, line: line}

	if p.tok.kind == tokImplies {
		if err := p.advance(); err != nil {
			return clause{}, err
		}
		for {
			lit, err := p.parseBodyLiteral()
			if err != nil {
				return clause{}, err
			}
			c.body = append(c.body, lit)
			if p.tok.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return clause{}, err
			}
		}
	}

	if err := p.expect(tokPeriod); err != nil {
		return clause{}, err
	}
	return c, nil
}

func (p *parser) parseBodyLiteral() (ir.Literal, error) {
	if p.tok.kind == tokIdent && p.tok.text == "not" {
		if err := p.advance(); err != nil {
			return ir.Literal{}, err
		}
		if p.tok.kind != tokIdent {
			return ir.Literal{}, p.errorf("expected predicate after 'not', found %s", p.tok.kind)
		}
		return p.parseLiteral(ir.Negative)
	}
	return p.parseLiteral(ir.Positive)
}

func (p *parser) parseLiteral(pol ir.Polarity) (ir.Literal, error) {
	if p.tok.kind != tokIdent {
		return ir.Literal{}, p.errorf("expected predicate name, found %s", p.tok.kind)
	}
	lit := ir.Literal{Polarity: pol, Predicate: p.tok.text}
	if err := p.advance(); err != nil {
		return ir.Literal{}, err
	}
	if p.tok.kind != tokLParen {
		return lit, nil
	}
	if err := p.advance(); err != nil {
		return ir.Literal{}, err
	}
	if p.tok.kind == tokRParen {
		return lit, p.advance()
	}
	for {
		arg, err := p.parseArg()
		if err != nil {
			return ir.Literal{}, err
		}
		lit.Args = append(lit.Args, arg)
		if p.tok.kind == tokRParen {
			break
		}
		if err := p.expect(tokComma); err != nil {
			return ir.Literal{}, err
		}
	}
	if len(lit.Args) > ir.MaxArity {
		return ir.Literal{}, p.errorf("predicate %s has %d arguments, maximum is %d", lit.Predicate, len(lit.Args), ir.MaxArity)
	}
	return lit, p.advance()
}

func (p *parser) parseArg() (ir.Atom, error) {
	tok := p.tok
	var arg ir.Atom
	switch tok.kind {
	case tokInt:
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf("integer out of range")
		}
		arg = ir.Int(n)
	case tokString:
		arg = ir.NewText(tok.text)
	case tokIdent:
		arg = ir.Symbol(tok.text)
	case tokVar:
		if tok.text == "_" {
			p.anon++
			arg = ir.Variable(fmt.Sprintf("%s%d", ir.AnonymousPrefix, p.anon))
		} else {
			arg = ir.Variable(tok.text)
		}
	default:
		return nil, p.errorf("expected argument, found %s", tok.kind)
	}
	return arg, p.advance()
}

func (p *parser) parseAll() ([]clause, error) {
	var clauses []clause
	for p.tok.kind != tokEOF {
		c, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// ParseRules parses rule source into rules with IDs r1, r2, ... in source order.
// Every clause must have a body; ground facts belong in fact input.
// Safety is not checked here (see Compile).
func ParseRules(src string) ([]ir.Rule, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	clauses, err := p.parseAll()
	if err != nil {
		return nil, err
	}

	rules := make([]ir.Rule, 0, len(clauses))
	for i, c := range clauses {
		if len(c.body) == 0 {
			return nil, &ParseError{
				Line:     c.line,
				Column:   1,
				Fragment: c.head.String(),
				Message:  "rule has no body; facts are submitted as base facts, not written as rules",
			}
		}
		r := ir.Rule{
			ID:   "r" + strconv.Itoa(i+1),
			Head: c.head,
			Body: c.body,
			Line: c.line,
		}
		r.Text = r.String()
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseFacts parses a sequence of ground clauses such as `issue(1, alice, open).`
func ParseFacts(src string) ([]ir.Fact, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	clauses, err := p.parseAll()
	if err != nil {
		return nil, err
	}

	facts := make([]ir.Fact, 0, len(clauses))
	for _, c := range clauses {
		f, err := clauseFact(c)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}

// ParseFact parses a single ground fact; the trailing period is optional.
func ParseFact(src string) (ir.Fact, error) {
	lit, line, err := parseSingleLiteral(src)
	if err != nil {
		return ir.Fact{}, err
	}
	return clauseFact(clause{head: lit, line: line})
}

// ParseQuery parses a single positive literal such as `issue(X, _, open)`.
// The trailing period is optional.
func ParseQuery(src string) (ir.Literal, error) {
	lit, _, err := parseSingleLiteral(src)
	return lit, err
}

func parseSingleLiteral(src string) (ir.Literal, int, error) {
	p, err := newParser(src)
	if err != nil {
		return ir.Literal{}, 0, err
	}
	line := p.tok.line
	if p.tok.kind == tokIdent && p.tok.text == "not" {
		return ir.Literal{}, 0, p.errorf("query cannot be negated")
	}
	lit, err := p.parseLiteral(ir.Positive)
	if err != nil {
		return ir.Literal{}, 0, err
	}
	if p.tok.kind == tokPeriod {
		if err := p.advance(); err != nil {
			return ir.Literal{}, 0, err
		}
	}
	if p.tok.kind != tokEOF {
		return ir.Literal{}, 0, p.errorf("unexpected %s after literal", p.tok.kind)
	}
	return lit, line, nil
}

func clauseFact(c clause) (ir.Fact, error) {
	if len(c.body) > 0 {
		return ir.Fact{}, &ParseError{Line: c.line, Column: 1, Fragment: c.head.String(),
			Message: "expected a fact, found a rule"}
	}
	var args []ir.Constant
	for i, a := range c.head.Args {
		k, ok := a.(ir.Constant)
		if !ok {
			return ir.Fact{}, &ParseError{Line: c.line, Column: 1, Fragment: c.head.String(),
				Message: fmt.Sprintf("fact argument %d is a variable", i+1)}
		}
		args = append(args, k)
	}
	return ir.NewFact(c.head.Predicate, args...), nil
}
