package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	mengine "github.com/google/mangle/engine"
	mfactstore "github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/ir"
)

// mangleDerived evaluates the program with Mangle and returns the derived
// facts rendered as strings, sorted.
func mangleDerived(t *testing.T, rp randomProgram, base []ir.Fact) []string {
	t.Helper()
	var src strings.Builder
	for _, f := range base {
		fmt.Fprintf(&src, "%s.\n", f)
	}
	for _, r := range rp.mangle {
		src.WriteString(r)
		src.WriteByte('\n')
	}

	unit, err := parse.Unit(strings.NewReader(src.String()))
	require.NoError(t, err, src.String())
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	require.NoError(t, err, src.String())
	store := mfactstore.NewSimpleInMemoryStore()
	_, err = mengine.EvalProgramWithStats(info, store)
	require.NoError(t, err, src.String())

	var out []string
	for _, name := range rp.derived {
		sym := ast.PredicateSym{Symbol: name, Arity: 2}
		err := store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			args := make([]string, len(a.Args))
			for i, arg := range a.Args {
				c, ok := arg.(ast.Constant)
				if !ok || c.Type != ast.NumberType {
					return fmt.Errorf("unexpected term %v", arg)
				}
				args[i] = fmt.Sprint(c.NumValue)
			}
			out = append(out, fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")))
			return nil
		})
		require.NoError(t, err)
	}
	slices.Sort(out)
	return out
}

// TestEvaluate_AgreesWithMangle compares full evaluation against an
// independent Datalog engine on random stratified programs.
func TestEvaluate_AgreesWithMangle(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		rp := genProgram(r)
		prog, err := compiler.Load(rp.source(), nil)
		require.NoError(t, err)

		base := genFacts(r, prog, 0.35)
		// Every base predicate needs at least one fact for Mangle to know it.
		for _, d := range prog.Decls() {
			if d.Kind == ir.Base {
				base = append(base, ir.NewFact(d.Name, ir.Int(9), ir.Int(9)))
			}
		}

		e := New(prog)
		_, err = e.SubmitFacts(ctx, base)
		require.NoError(t, err)
		require.NoError(t, e.Evaluate(ctx))

		var got []string
		for _, f := range e.DerivedFacts() {
			got = append(got, f.String())
		}
		slices.Sort(got)

		want := mangleDerived(t, rp, e.BaseFacts())
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("program %d:\n%s\n(-mangle +factlog):\n%s", i, rp.source(), diff)
		}
	}
}
