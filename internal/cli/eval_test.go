package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/testutil"
)

func TestEval_Text(t *testing.T) {
	rules, facts := writeGraph(t)

	stdout, _, err := execute(t, NewEvalCommand, &RootOptions{Format: "text"}, rules, "--facts", facts)
	require.NoError(t, err)
	assert.Equal(t, `reach(1, 2)
reach(1, 3)
reach(2, 3)
unreachable(1, 1)
unreachable(3, 1)
unreachable(3, 3)
`, stdout)
}

func TestEval_PredicateFilterJSON(t *testing.T) {
	rules, facts := writeGraph(t)

	stdout, _, err := execute(t, NewEvalCommand, &RootOptions{Format: "json"}, rules, "--facts", facts, "-p", "unreachable")
	require.NoError(t, err)

	var resp struct {
		Data EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 4, resp.Data.Base)
	assert.Equal(t, []string{"unreachable(1, 1)", "unreachable(3, 1)", "unreachable(3, 3)"}, resp.Data.Derived)
}

func TestEval_MultipleFactFiles(t *testing.T) {
	dir := t.TempDir()
	rules := testutil.WriteFile(t, dir, "reach.dl", reachRules)
	a := testutil.WriteFile(t, dir, "a.facts", "edge(1, 2).")
	b := testutil.WriteFile(t, dir, "b.facts", "% more edges\nedge(2, 3).")

	stdout, _, err := execute(t, NewEvalCommand, &RootOptions{Format: "text"}, rules, "--facts", a, "--facts", b, "-p", "reach")
	require.NoError(t, err)
	assert.Equal(t, "reach(1, 2)\nreach(1, 3)\nreach(2, 3)\n", stdout)
}

func TestEval_RejectedFact(t *testing.T) {
	dir := t.TempDir()
	rules := testutil.WriteFile(t, dir, "reach.dl", reachRules)
	facts := testutil.WriteFile(t, dir, "bad.facts", "edge(1, 2). vertex(1).")

	stdout, _, err := execute(t, NewEvalCommand, &RootOptions{Format: "json"}, rules, "--facts", facts)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownPredicate, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "vertex(1)")
}

func TestEval_RoundLimit(t *testing.T) {
	dir := t.TempDir()
	rules := testutil.WriteFile(t, dir, "reach.dl", reachRules)
	facts := testutil.WriteFile(t, dir, "chain.facts", "edge(1, 2). edge(2, 3). edge(3, 4). edge(4, 5).")
	cfg := testutil.WriteFile(t, dir, "factlog.yaml", "engine:\n  max_rounds_per_stratum: 1\nlog:\n  level: error\n")

	_, stderr, err := execute(t, NewEvalCommand, &RootOptions{Format: "text", Config: cfg}, rules, "--facts", facts)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "Error [E303]")
}

func TestQuery_Bindings(t *testing.T) {
	rules, facts := writeGraph(t)

	stdout, _, err := execute(t, NewQueryCommand, &RootOptions{Format: "text"}, rules, "--facts", facts, "reach(1, Y)")
	require.NoError(t, err)
	assert.Equal(t, "Y=2\nY=3\n(2 answers)\n", stdout)
}

func TestQuery_GroundAndLimit(t *testing.T) {
	rules, facts := writeGraph(t)

	stdout, _, err := execute(t, NewQueryCommand, &RootOptions{Format: "text"}, rules, "--facts", facts, "reach(1, 3).")
	require.NoError(t, err)
	assert.Equal(t, "reach(1, 3)\n(1 answers)\n", stdout)

	stdout, _, err = execute(t, NewQueryCommand, &RootOptions{Format: "json"}, rules, "--facts", facts, "reach(X, Y)", "--limit", "2")
	require.NoError(t, err)
	var resp struct {
		Data QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, []QueryRow{
		{Fact: "reach(1, 2)", Bindings: map[string]string{"X": "1", "Y": "2"}},
		{Fact: "reach(1, 3)", Bindings: map[string]string{"X": "1", "Y": "3"}},
	}, resp.Data.Rows)
}

func TestQuery_Errors(t *testing.T) {
	rules, facts := writeGraph(t)

	tests := []struct {
		name    string
		pattern string
		code    string
	}{
		{"unknown predicate", "vertex(X)", ErrCodeUnknownPredicate},
		{"arity mismatch", "reach(X)", ErrCodeArityMismatch},
		{"malformed", "reach(X,", "E201"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, NewQueryCommand, &RootOptions{Format: "json"}, rules, "--facts", facts, tt.pattern)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestExplain_Text(t *testing.T) {
	rules, facts := writeGraph(t)

	stdout, _, err := execute(t, NewExplainCommand, &RootOptions{Format: "text"}, rules, "--facts", facts, "reach(1, 3)")
	require.NoError(t, err)
	assert.Equal(t, `reach(1, 3)
  via r2: reach(X, Z) :- reach(X, Y), edge(Y, Z).
    reach(1, 2)
      via r1: reach(X, Y) :- edge(X, Y).
        edge(1, 2)  [base]
    edge(2, 3)  [base]
`, stdout)
}

func TestExplain_JSONNegation(t *testing.T) {
	rules, facts := writeGraph(t)

	stdout, _, err := execute(t, NewExplainCommand, &RootOptions{Format: "json"}, rules, "--facts", facts, "unreachable(3, 1)")
	require.NoError(t, err)

	var resp struct {
		Data ProofNode `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "unreachable(3, 1)", resp.Data.Fact)
	require.Len(t, resp.Data.Supports, 1)
	sup := resp.Data.Supports[0]
	assert.Equal(t, "r3", sup.Rule)
	assert.Len(t, sup.ID, 64)
	require.Len(t, sup.Premises, 2)
	assert.True(t, sup.Premises[0].Base)
	assert.Equal(t, []string{"reach(3, 1)"}, sup.Absent)
}

func TestExplain_NotStored(t *testing.T) {
	rules, facts := writeGraph(t)

	_, stderr, err := execute(t, NewExplainCommand, &RootOptions{Format: "text"}, rules, "--facts", facts, "reach(3, 1)")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "Error [E305]")
}
