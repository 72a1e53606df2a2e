package engine

import (
	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/ir"
)

// rulePlan is a rule prepared for evaluation: its body orders and the
// positions of its positive and negated literals.
type rulePlan struct {
	rule      ir.Rule
	stratum   int
	posVars   []ir.Variable
	positives []int
	negatives []int

	// orders maps the body index evaluated first (-1 for none) to the full
	// evaluation order of body positions.
	orders map[int][]int
}

// negUse locates a negated literal inside a rule.
type negUse struct {
	plan  *rulePlan
	index int
}

func newRulePlan(r ir.Rule, stratum int) *rulePlan {
	p := &rulePlan{
		rule:    r,
		stratum: stratum,
		posVars: r.PositiveVariables(),
		orders:  make(map[int][]int, len(r.Body)+1),
	}
	for i, lit := range r.Body {
		if lit.Negated() {
			p.negatives = append(p.negatives, i)
		} else {
			p.positives = append(p.positives, i)
		}
	}
	p.orders[-1] = bodyOrder(r.Body, -1)
	for _, i := range p.positives {
		p.orders[i] = bodyOrder(r.Body, i)
	}
	return p
}

// bodyOrder returns the evaluation order of a rule body.
//
// The literal at first (if any) comes first, then the remaining positive
// literals in source order. Each negated literal is placed as soon as all of
// its named variables are bound, so a ground negation is checked before any
// lookup.
func bodyOrder(body []ir.Literal, first int) []int {
	order := make([]int, 0, len(body))
	placed := make([]bool, len(body))
	bound := make(map[ir.Variable]bool)

	placeNegations := func() {
		for i, lit := range body {
			if placed[i] || !lit.Negated() {
				continue
			}
			ready := true
			for _, v := range lit.Variables() {
				if !v.Anonymous() && !bound[v] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, i)
				placed[i] = true
			}
		}
	}
	bind := func(i int) {
		order = append(order, i)
		placed[i] = true
		for _, v := range body[i].Variables() {
			bound[v] = true
		}
		placeNegations()
	}

	placeNegations()
	if first >= 0 {
		bind(first)
	}
	for i, lit := range body {
		if !placed[i] && !lit.Negated() {
			bind(i)
		}
	}
	// Unreachable for safe rules.
	for i := range body {
		if !placed[i] {
			order = append(order, i)
		}
	}
	return order
}

// buildPlans prepares every rule of prog, grouped by stratum, by head
// predicate and by negated predicate.
func buildPlans(prog *compiler.Program) (byStratum [][]*rulePlan, byHead map[string][]*rulePlan, negUsers map[string][]negUse) {
	byStratum = make([][]*rulePlan, len(prog.Strata.Strata))
	byHead = make(map[string][]*rulePlan)
	negUsers = make(map[string][]negUse)
	for _, st := range prog.Strata.Strata {
		for _, r := range st.Rules {
			p := newRulePlan(r, st.Index)
			byStratum[st.Index] = append(byStratum[st.Index], p)
			byHead[r.Head.Predicate] = append(byHead[r.Head.Predicate], p)
			for _, i := range p.negatives {
				pred := r.Body[i].Predicate
				negUsers[pred] = append(negUsers[pred], negUse{plan: p, index: i})
			}
		}
	}
	return byStratum, byHead, negUsers
}

// support builds the derived fact and its support from a complete body
// instantiation. premises holds the matched fact per positive body position.
func (p *rulePlan) support(sub ir.Substitution, premises []ir.Fact) (ir.Fact, ir.Support, bool) {
	head, ok := sub.Ground(p.rule.Head.Args)
	if !ok {
		return ir.Fact{}, ir.Support{}, false
	}
	bindings := make(ir.Tuple, len(p.posVars))
	for i, v := range p.posVars {
		bindings[i] = sub[v]
	}
	sup := ir.Support{Rule: p.rule.ID, Bindings: bindings}
	if len(p.positives) > 0 {
		sup.Premises = make([]ir.Fact, 0, len(p.positives))
		for _, i := range p.positives {
			sup.Premises = append(sup.Premises, premises[i])
		}
	}
	if len(p.negatives) > 0 {
		sup.Negations = make([]ir.NegatedPattern, 0, len(p.negatives))
		for _, i := range p.negatives {
			lit := p.rule.Body[i]
			sup.Negations = append(sup.Negations, ir.NegatedPattern{
				Predicate: lit.Predicate,
				Pattern:   negationPattern(lit.Args, sub),
			})
		}
	}
	return ir.Fact{Predicate: p.rule.Head.Predicate, Args: head}, sup, true
}
