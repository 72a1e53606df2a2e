package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/factlog/internal/ir"
)

// ErrFactNotFound is returned by Explain for a fact that is not stored.
var ErrFactNotFound = errors.New("fact not found")

// DefaultExplainDepth bounds proof trees when Explain is given depth <= 0.
const DefaultExplainDepth = 8

// Proof explains why a fact holds.
type Proof struct {
	Fact ir.Fact
	// Base is set for facts asserted directly.
	Base bool
	// Cycle is set when the fact already appears higher up in the tree.
	Cycle bool
	// Truncated is set when the depth limit cut off the supports.
	Truncated bool
	Supports  []ProofStep
}

// ProofStep is one support of a derived fact.
type ProofStep struct {
	ID       string // content hash of fact and support
	Rule     string
	Text     string
	Premises []*Proof
	Absent   []ir.NegatedPattern
}

// Explain builds the proof tree of a stored fact down to depth levels.
func (e *Engine) Explain(f ir.Fact, depth int) (*Proof, error) {
	if err := e.checkPredicate(f.Predicate, len(f.Args)); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = DefaultExplainDepth
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.store.Contains(f) {
		return nil, fmt.Errorf("explain %s: %w", f, ErrFactNotFound)
	}
	return e.explain(f, depth, make(map[string]bool))
}

func (e *Engine) explain(f ir.Fact, depth int, visiting map[string]bool) (*Proof, error) {
	pf := &Proof{Fact: f}
	if d, _ := e.store.Decl(f.Predicate); d.Kind == ir.Base {
		pf.Base = true
		return pf, nil
	}
	key := f.Key()
	if visiting[key] {
		pf.Cycle = true
		return pf, nil
	}
	if depth == 0 {
		pf.Truncated = true
		return pf, nil
	}
	visiting[key] = true
	defer delete(visiting, key)

	for _, sup := range e.store.Supports(f) {
		id, err := ir.SupportID(f, sup)
		if err != nil {
			return nil, fmt.Errorf("explain %s: %w", f, err)
		}
		step := ProofStep{ID: id, Rule: sup.Rule, Absent: sup.Negations}
		if r, ok := e.prog.Rule(sup.Rule); ok {
			step.Text = r.Text
		}
		for _, prem := range sup.Premises {
			sub, err := e.explain(prem, depth-1, visiting)
			if err != nil {
				return nil, err
			}
			step.Premises = append(step.Premises, sub)
		}
		pf.Supports = append(pf.Supports, step)
	}
	return pf, nil
}

// String renders the proof as an indented tree.
func (p *Proof) String() string {
	var b strings.Builder
	p.write(&b, 0)
	return b.String()
}

func (p *Proof) write(b *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	b.WriteString(pad)
	b.WriteString(p.Fact.String())
	switch {
	case p.Base:
		b.WriteString("  [base]")
	case p.Cycle:
		b.WriteString("  [cycle]")
	case p.Truncated:
		b.WriteString("  [...]")
	}
	b.WriteByte('\n')
	for _, s := range p.Supports {
		fmt.Fprintf(b, "%s  via %s: %s\n", pad, s.Rule, s.Text)
		for _, prem := range s.Premises {
			prem.write(b, indent+2)
		}
		for _, neg := range s.Absent {
			fmt.Fprintf(b, "%s    absent %s%s\n", pad, neg.Predicate, neg.Pattern)
		}
	}
}
