package ir

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompare_KindOrder tests that Int < Text < Symbol regardless of value.
func TestCompare_KindOrder(t *testing.T) {
	assert.Equal(t, -1, Compare(Int(999), Text("a")))
	assert.Equal(t, -1, Compare(Text("zzz"), Symbol("a")))
	assert.Equal(t, 1, Compare(Symbol("a"), Int(-5)))
}

func TestCompare_WithinKind(t *testing.T) {
	tests := []struct {
		name string
		a, b Constant
		want int
	}{
		{"int numeric", Int(2), Int(10), -1},
		{"negative int", Int(-3), Int(-1), -1},
		{"equal ints", Int(7), Int(7), 0},
		{"text bytewise", Text("B"), Text("a"), -1},
		{"symbol bytewise", Symbol("open"), Symbol("closed"), 1},
		{"equal symbols", Symbol("x"), Symbol("x"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

// TestEqual_TextVsSymbol tests that same spelling across kinds is not equal.
func TestEqual_TextVsSymbol(t *testing.T) {
	assert.False(t, Equal(Text("open"), Symbol("open")))
	assert.True(t, Equal(Symbol("open"), Symbol("open")))
}

// TestNewText_NFC tests that decomposed input is normalized.
func TestNewText_NFC(t *testing.T) {
	decomposed := "café"
	composed := "café"
	assert.Equal(t, Text(composed), NewText(decomposed))
	assert.True(t, Equal(NewText(decomposed), NewText(composed)))
}

func TestQuoteText(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteText("plain"))
	assert.Equal(t, `"say \"hi\"\n\tback\\slash"`, QuoteText("say \"hi\"\n\tback\\slash"))
}

// TestTupleKey_Injective tests that keys never collide across kinds or splits.
func TestTupleKey_Injective(t *testing.T) {
	tuples := []Tuple{
		{Text("ab"), Text("c")},
		{Text("a"), Text("bc")},
		{Symbol("ab"), Text("c")},
		{Int(1), Int(23)},
		{Int(12), Int(3)},
		{Text("1")},
		{Int(1)},
		{},
	}
	seen := make(map[string]int)
	for i, tup := range tuples {
		k := tup.Key()
		if j, dup := seen[k]; dup {
			t.Fatalf("tuple %v and %v share key %q", tuples[j], tup, k)
		}
		seen[k] = i
	}
}

func TestCompareTuples(t *testing.T) {
	tuples := []Tuple{
		{Symbol("b")},
		{Int(2), Text("x")},
		{Int(2)},
		{Int(1), Symbol("z")},
	}
	slices.SortFunc(tuples, CompareTuples)
	assert.Equal(t, []Tuple{
		{Int(1), Symbol("z")},
		{Int(2)},
		{Int(2), Text("x")},
		{Symbol("b")},
	}, tuples)
}

// TestPattern_MatchesAndProject tests that pattern keys line up with tuple projections.
func TestPattern_MatchesAndProject(t *testing.T) {
	tup := Tuple{Int(1), Symbol("alice"), Symbol("open")}
	p := Pattern{nil, Symbol("alice"), nil}

	assert.True(t, p.Matches(tup))
	assert.Equal(t, uint64(0b010), p.Mask())
	assert.Equal(t, tup.Project(p.Mask()), p.BoundKey())

	assert.False(t, Pattern{nil, Symbol("bob"), nil}.Matches(tup))
	assert.False(t, Pattern{nil, nil}.Matches(tup), "arity differs")
	assert.Equal(t, "(_, alice, _)", p.String())
}

func TestSubstitution_GroundAndPattern(t *testing.T) {
	s := Substitution{"X": Int(1)}
	args := []Atom{Variable("X"), Symbol("open"), Variable("Y")}

	_, ok := s.Ground(args)
	assert.False(t, ok, "Y is unbound")

	assert.Equal(t, Pattern{Int(1), Symbol("open"), nil}, s.Pattern(args))

	s2 := s.Clone(1)
	s2["Y"] = Text("t")
	got, ok := s2.Ground(args)
	require.True(t, ok)
	assert.Equal(t, Tuple{Int(1), Symbol("open"), Text("t")}, got)
	assert.NotContains(t, s, Variable("Y"), "clone must not alias")
}

func TestSubstitution_GroundZeroArity(t *testing.T) {
	got, ok := Substitution{}.Ground(nil)
	require.True(t, ok)
	assert.Equal(t, NewFact("quiet"), Fact{Predicate: "quiet", Args: got})
}

func TestRule_StringAndPositiveVariables(t *testing.T) {
	r := Rule{
		ID:   "r1",
		Head: Literal{Predicate: "stale", Args: []Atom{Variable("I")}},
		Body: []Literal{
			{Predicate: "issue", Args: []Atom{Variable("I"), Variable("A"), Symbol("open")}},
			{Polarity: Negative, Predicate: "recently_active", Args: []Atom{Variable("I")}},
			{Predicate: "assignee", Args: []Atom{Variable("I"), Variable("B")}},
		},
	}
	assert.Equal(t, "stale(I) :- issue(I, A, open), not recently_active(I), assignee(I, B).", r.String())
	assert.Equal(t, []Variable{"I", "A", "B"}, r.PositiveVariables())
}

func TestFact_String(t *testing.T) {
	assert.Equal(t, `label(1, "bug")`, NewFact("label", Int(1), Text("bug")).String())
	assert.Equal(t, "ready", NewFact("ready").String())
}
