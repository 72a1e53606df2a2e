package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/ir"
)

func TestProgram(t *testing.T) {
	prog := Program(t, "p(X) :- q(X).")
	assert.Len(t, prog.Rules, 1)
}

func TestFactsAndStrings(t *testing.T) {
	facts := Facts(t, `edge(1, 2). label(1, "bug").`)
	assert.Equal(t, []ir.Fact{
		ir.NewFact("edge", ir.Int(1), ir.Int(2)),
		ir.NewFact("label", ir.Int(1), ir.NewText("bug")),
	}, facts)
	assert.Equal(t, []string{"edge(1, 2)", `label(1, "bug")`}, Strings(facts))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, "nested/rules.dl", "p(X) :- q(X).\n")
	assert.Equal(t, filepath.Join(dir, "nested", "rules.dl"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "p(X) :- q(X).\n", string(data))
}
