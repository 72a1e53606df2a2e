package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/factstore"
	"github.com/roach88/factlog/internal/ir"
)

func unifyStore(t *testing.T) *factstore.Store {
	t.Helper()
	s := factstore.New([]ir.PredicateDecl{
		{Name: "label", Arity: 2},
		{Name: "edge", Arity: 2},
	})
	for _, f := range []ir.Fact{
		ir.NewFact("label", ir.Int(1), ir.Symbol("bug")),
		ir.NewFact("label", ir.Int(2), ir.Symbol("bug")),
		ir.NewFact("label", ir.Int(2), ir.Symbol("ui")),
		ir.NewFact("edge", ir.Int(1), ir.Int(1)),
		ir.NewFact("edge", ir.Int(1), ir.Int(2)),
	} {
		_, err := s.Insert(f)
		require.NoError(t, err)
	}
	return s
}

func TestUnify(t *testing.T) {
	s := unifyStore(t)
	x, y := ir.Variable("X"), ir.Variable("Y")

	tests := []struct {
		name string
		lit  ir.Literal
		sub  ir.Substitution
		want []ir.Substitution
	}{
		{
			name: "unbound variables bind",
			lit:  ir.Literal{Predicate: "label", Args: []ir.Atom{x, ir.Symbol("ui")}},
			want: []ir.Substitution{{x: ir.Int(2)}},
		},
		{
			name: "bound variable filters",
			lit:  ir.Literal{Predicate: "label", Args: []ir.Atom{x, y}},
			sub:  ir.Substitution{x: ir.Int(1)},
			want: []ir.Substitution{{x: ir.Int(1), y: ir.Symbol("bug")}},
		},
		{
			name: "repeated variable",
			lit:  ir.Literal{Predicate: "edge", Args: []ir.Atom{x, x}},
			want: []ir.Substitution{{x: ir.Int(1)}},
		},
		{
			name: "constant mismatch",
			lit:  ir.Literal{Predicate: "label", Args: []ir.Atom{ir.Int(3), y}},
			want: nil,
		},
		{
			name: "kinds never unify",
			lit:  ir.Literal{Predicate: "label", Args: []ir.Atom{x, ir.Text("bug")}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.sub.Clone(0)
			got := Unify(tt.lit, s, tt.sub)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, tt.sub.Clone(0), "input substitution is not modified")
		})
	}
}

func TestMatchTuple(t *testing.T) {
	x := ir.Variable("X")
	args := []ir.Atom{x, ir.Symbol("open"), x}

	sub, ok := MatchTuple(args, ir.Tuple{ir.Int(4), ir.Symbol("open"), ir.Int(4)}, nil)
	require.True(t, ok)
	assert.Equal(t, ir.Substitution{x: ir.Int(4)}, sub)

	_, ok = MatchTuple(args, ir.Tuple{ir.Int(4), ir.Symbol("open"), ir.Int(5)}, nil)
	assert.False(t, ok)

	_, ok = MatchTuple(args, ir.Tuple{ir.Int(4)}, nil)
	assert.False(t, ok, "length mismatch")

	bound := ir.Substitution{x: ir.Int(4)}
	sub, ok = MatchTuple(args, ir.Tuple{ir.Int(4), ir.Symbol("open"), ir.Int(4)}, bound)
	require.True(t, ok)
	assert.Equal(t, bound, sub)
}

func TestNegationPattern(t *testing.T) {
	x, anon := ir.Variable("X"), ir.Variable(ir.AnonymousPrefix+"1")
	sub := ir.Substitution{x: ir.Int(3), anon: ir.Int(9)}

	p := negationPattern([]ir.Atom{x, anon, ir.Symbol("open")}, sub)
	assert.Equal(t, ir.Pattern{ir.Int(3), nil, ir.Symbol("open")}, p)
}

func TestMatchNamed(t *testing.T) {
	x := ir.Variable("X")
	a1, a2 := ir.Variable(ir.AnonymousPrefix+"1"), ir.Variable(ir.AnonymousPrefix+"2")

	sub, ok := matchNamed([]ir.Atom{x, a1, a2}, ir.Tuple{ir.Int(1), ir.Int(2), ir.Int(3)}, nil)
	require.True(t, ok)
	assert.Equal(t, ir.Substitution{x: ir.Int(1)}, sub, "anonymous positions stay unbound")

	_, ok = matchNamed([]ir.Atom{x, x}, ir.Tuple{ir.Int(1), ir.Int(2)}, nil)
	assert.False(t, ok)
}
