// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/ir"
)

// Program compiles rule source or fails the test.
func Program(t testing.TB, rules string) *compiler.Program {
	t.Helper()
	prog, err := compiler.Load(rules, nil)
	require.NoError(t, err)
	return prog
}

// Facts parses fact source or fails the test.
func Facts(t testing.TB, src string) []ir.Fact {
	t.Helper()
	facts, err := compiler.ParseFacts(src)
	require.NoError(t, err)
	return facts
}

// Strings renders facts with Fact.String, preserving order.
func Strings(facts []ir.Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.String()
	}
	return out
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
