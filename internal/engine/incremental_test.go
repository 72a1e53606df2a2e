package engine

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/ir"
)

// fullEvaluation returns the derived facts of a fresh engine over base.
func fullEvaluation(t *testing.T, prog *compiler.Program, base []ir.Fact) []ir.Fact {
	t.Helper()
	ctx := context.Background()
	e := New(prog)
	_, err := e.SubmitFacts(ctx, base)
	require.NoError(t, err)
	require.NoError(t, e.Evaluate(ctx))
	return e.DerivedFacts()
}

func TestApplyDelta_MatchesFullEvaluation(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		initial string
		delta   Delta
	}{
		{
			name:    "transitive closure addition",
			rules:   reachRules,
			initial: "edge(1, 2). edge(3, 4). node(1). node(2). node(3). node(4).",
			delta:   Delta{Added: []ir.Fact{ir.NewFact("edge", ir.Int(2), ir.Int(3))}},
		},
		{
			name:    "transitive closure retraction",
			rules:   reachRules,
			initial: "edge(1, 2). edge(2, 3). edge(3, 4). edge(1, 3). node(1). node(4).",
			delta:   Delta{Retracted: []ir.Fact{ir.NewFact("edge", ir.Int(2), ir.Int(3))}},
		},
		{
			name:    "mixed change across strata",
			rules:   reachRules,
			initial: "edge(1, 2). edge(2, 3). node(1). node(2). node(3).",
			delta: Delta{
				Added:     []ir.Fact{ir.NewFact("edge", ir.Int(3), ir.Int(1))},
				Retracted: []ir.Fact{ir.NewFact("edge", ir.Int(1), ir.Int(2))},
			},
		},
		{
			name: "anonymous variable under negation",
			rules: `
commented(X) :- issue(X), comment(X, _).
quiet(X) :- issue(X), not comment(X, _).
`,
			initial: "issue(1). issue(2). comment(1, 10). comment(1, 11).",
			delta: Delta{
				Added:     []ir.Fact{ir.NewFact("comment", ir.Int(2), ir.Int(20))},
				Retracted: []ir.Fact{ir.NewFact("comment", ir.Int(1), ir.Int(10)), ir.NewFact("comment", ir.Int(1), ir.Int(11))},
			},
		},
		{
			name: "three strata",
			rules: `
hot(C) :- touches(I, C), bug(I).
cold(C) :- component(C), not hot(C).
orphan(C) :- cold(C), not owner(C, _).
`,
			initial: "touches(1, db). touches(2, ui). bug(1). component(db). component(ui). component(api). owner(api, alice).",
			delta: Delta{
				Added:     []ir.Fact{ir.NewFact("bug", ir.Int(2))},
				Retracted: []ir.Fact{ir.NewFact("bug", ir.Int(1)), ir.NewFact("owner", ir.Symbol("api"), ir.Symbol("alice"))},
			},
		},
		{
			name:    "ground negation",
			rules:   "blocked(X) :- task(X), not open_window.",
			initial: "task(1). task(2). open_window.",
			delta:   Delta{Retracted: []ir.Fact{ir.NewFact("open_window")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			prog, err := compiler.Load(tt.rules, nil)
			require.NoError(t, err)

			initial := parseFacts(t, tt.initial)
			e := New(prog)
			_, err = e.SubmitFacts(ctx, initial)
			require.NoError(t, err)
			_, err = e.ApplyDelta(ctx, tt.delta)
			require.NoError(t, err)

			want := fullEvaluation(t, prog, e.BaseFacts())
			if diff := cmp.Diff(want, e.DerivedFacts()); diff != "" {
				t.Errorf("incremental result differs from full evaluation (-want +got):\n%s", diff)
			}
		})
	}
}

// TestApplyDelta_RulesWithoutPositiveLiterals tests that rules whose body is
// only negated literals hold on an engine fed solely through deltas.
func TestApplyDelta_RulesWithoutPositiveLiterals(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, `
quiet :- not alarm.
idle(1) :- not busy(1).
seen(X) :- obs(X).
`)

	res, err := e.SubmitFacts(ctx, parseFacts(t, "obs(1)."))
	require.NoError(t, err)
	assert.Equal(t, []string{"idle(1)", "quiet", "seen(1)"}, derivedStrings(e))
	assert.Contains(t, res.Changes.Added, ir.NewFact("quiet"))

	want := fullEvaluation(t, e.Program(), e.BaseFacts())
	if diff := cmp.Diff(want, e.DerivedFacts()); diff != "" {
		t.Errorf("incremental result differs from full evaluation (-want +got):\n%s", diff)
	}

	r, err := e.ApplyDelta(ctx, Delta{Added: parseFacts(t, "alarm. busy(1).")})
	require.NoError(t, err)
	assert.Equal(t, []ir.Fact{ir.NewFact("idle", ir.Int(1)), ir.NewFact("quiet")}, r.Removed)
	assert.Equal(t, []string{"seen(1)"}, derivedStrings(e))
}

// TestApplyDelta_FirstDeltaRollsBack tests that a failed first delta leaves
// the engine to seed on the next one.
func TestApplyDelta_FirstDeltaRollsBack(t *testing.T) {
	e := newEngine(t, "quiet :- not alarm.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ApplyDelta(ctx, Delta{Added: parseFacts(t, "alarm.")})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Empty(t, e.DerivedFacts())
	assert.Empty(t, e.BaseFacts())

	res, err := e.ApplyDelta(context.Background(), Delta{})
	require.NoError(t, err)
	assert.Equal(t, []ir.Fact{ir.NewFact("quiet")}, res.Added)
}

// TestApplyDelta_RandomPrograms checks incremental maintenance against full
// evaluation over random programs and random sequences of deltas.
func TestApplyDelta_RandomPrograms(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		rp := genProgram(r)
		prog, err := compiler.Load(rp.source(), nil)
		require.NoError(t, err, rp.source())

		e := New(prog)
		_, err = e.SubmitFacts(ctx, genFacts(r, prog, 0.3))
		require.NoError(t, err)

		for step := 0; step < 4; step++ {
			d := Delta{Added: genFacts(r, prog, 0.1)}
			for _, f := range e.BaseFacts() {
				if r.Float64() < 0.25 {
					d.Retracted = append(d.Retracted, f)
				}
			}
			res, err := e.ApplyDelta(ctx, d)
			require.NoError(t, err)

			want := fullEvaluation(t, prog, e.BaseFacts())
			if diff := cmp.Diff(want, e.DerivedFacts()); diff != "" {
				t.Fatalf("program %d step %d:\n%s\ndelta %+v\n(-want +got):\n%s", i, step, rp.source(), d, diff)
			}
			for _, f := range res.Added {
				assert.Contains(t, want, f)
			}
			for _, f := range res.Removed {
				assert.NotContains(t, want, f)
			}
		}
	}
}

// TestApplyDelta_SupportsMatchFullEvaluation tests that non-recursive facts
// keep every support after incremental maintenance, which exact retraction
// depends on.
func TestApplyDelta_SupportsMatchFullEvaluation(t *testing.T) {
	ctx := context.Background()
	rules := `
linked(X, Y) :- mentions_issue(X, Y).
linked(X, Y) :- mentions_issue(Y, X).
linked(X, Y) :- same_label(X, Y), not closed(X).
`
	prog, err := compiler.Load(rules, nil)
	require.NoError(t, err)

	inc := New(prog)
	_, err = inc.SubmitFacts(ctx, parseFacts(t, "mentions_issue(1, 2). closed(1)."))
	require.NoError(t, err)
	_, err = inc.ApplyDelta(ctx, Delta{
		Added:     parseFacts(t, "mentions_issue(2, 1). same_label(1, 2)."),
		Retracted: parseFacts(t, "closed(1)."),
	})
	require.NoError(t, err)

	full := New(prog)
	_, err = full.SubmitFacts(ctx, inc.BaseFacts())
	require.NoError(t, err)
	require.NoError(t, full.Evaluate(ctx))

	f := ir.NewFact("linked", ir.Int(1), ir.Int(2))
	incProof, err := inc.Explain(f, 1)
	require.NoError(t, err)
	fullProof, err := full.Explain(f, 1)
	require.NoError(t, err)
	assert.Len(t, incProof.Supports, 3)
	if diff := cmp.Diff(fullProof, incProof); diff != "" {
		t.Errorf("supports differ (-full +incremental):\n%s", diff)
	}
}
