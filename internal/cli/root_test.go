package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/testutil"
)

const reachRules = `% transitive closure
reach(X, Y) :- edge(X, Y).
reach(X, Z) :- reach(X, Y), edge(Y, Z).
unreachable(X, Y) :- node(X), node(Y), not reach(X, Y).
`

const graphFacts = `edge(1, 2). edge(2, 3).
node(1). node(3).
`

// execute runs a command built by newCmd and returns stdout, stderr and
// the command error.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeGraph writes the reach rules and graph facts into a temp directory.
func writeGraph(t *testing.T) (rules, facts string) {
	t.Helper()
	dir := t.TempDir()
	return testutil.WriteFile(t, dir, "reach.dl", reachRules), testutil.WriteFile(t, dir, "graph.facts", graphFacts)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "factlog", cmd.Use)
	assert.Contains(t, cmd.Long, "stratified Datalog")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"check", "strata", "eval", "query", "explain", "ingest", "replay", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"check", "schema", ""},
		{"eval", "facts", "[]"},
		{"eval", "predicate", "[]"},
		{"query", "limit", "0"},
		{"explain", "depth", "8"},
		{"ingest", "db", ""},
		{"ingest", "retract", "false"},
		{"replay", "db", ""},
		{"test", "update", "false"},
		{"test", "parallel", "4"},
	}

	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	rules, _ := writeGraph(t)
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "yaml", "check", rules})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestRootCommand_ConfigSuppliesRules(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "reach.dl", reachRules)
	cfg := testutil.WriteFile(t, dir, "factlog.yaml", "rules: reach.dl\nlog:\n  level: error\n")

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg, "--format", "json", "check"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"rules":3`)
}

func TestRootCommand_BadConfig(t *testing.T) {
	cfg := testutil.WriteFile(t, t.TempDir(), "factlog.yaml", "engine:\n  max_rounds: 5\n")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg, "check", "rules.dl"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestMetricsOutput(t *testing.T) {
	dir := t.TempDir()
	rules := testutil.WriteFile(t, dir, "reach.dl", reachRules)
	facts := testutil.WriteFile(t, dir, "graph.facts", graphFacts)
	cfg := testutil.WriteFile(t, dir, "factlog.yaml", "metrics:\n  enabled: true\nlog:\n  level: error\n")

	stdout, stderr, err := execute(t, NewEvalCommand, &RootOptions{Format: "text", Config: cfg}, rules, "--facts", facts)
	require.NoError(t, err)
	assert.Contains(t, stdout, "reach(1, 3)")
	assert.Contains(t, stderr, `factlog_runs_total{kind="delta",outcome="ok"} 1`)
	assert.Contains(t, stderr, `factlog_runs_total{kind="evaluate",outcome="ok"} 1`)
	assert.Contains(t, stderr, `factlog_facts{partition="derived"} 6`)
}
