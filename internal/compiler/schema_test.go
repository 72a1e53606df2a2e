package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/ir"
)

func TestParseSchema(t *testing.T) {
	schema, err := ParseSchema(`
predicates: {
	mentions_issue: {arity: 2, doc: "source issue mentions target issue"}
	issue:          {arity: 6, kind: "base"}
}
`)
	require.NoError(t, err)
	require.Len(t, schema.Predicates, 2)

	assert.Equal(t, SchemaPredicate{Name: "issue", Arity: 6, Kind: ir.Base, KindSet: true}, schema.Predicates[0])
	assert.Equal(t, "mentions_issue", schema.Predicates[1].Name)
	assert.False(t, schema.Predicates[1].KindSet)
	assert.Equal(t, "source issue mentions target issue", schema.Predicates[1].Doc)
}

func TestParseSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"arity too large", `predicates: p: {arity: 65}`},
		{"negative arity", `predicates: p: {arity: -1}`},
		{"unknown kind", `predicates: p: {arity: 1, kind: "virtual"}`},
		{"unknown field", `predicates: p: {arity: 1, arty: 2}`},
		{"bad name", `predicates: Issue: {arity: 1}`},
		{"missing arity", `predicates: p: {doc: "x"}`},
		{"syntax", `predicates: {`},
		{"missing predicates", `other: 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema(tt.src)
			assert.Error(t, err)
		})
	}
}

// TestLoadSchema_Position tests that CUE errors carry the file position.
func TestLoadSchema_Position(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.cue")
	require.NoError(t, os.WriteFile(path, []byte("predicates: {\n\tp: {arity: \"two\"}\n}\n"), 0o644))

	_, err := LoadSchema(path)
	require.Error(t, err)
	var ce *CompileError
	if assert.ErrorAs(t, err, &ce) {
		assert.Equal(t, ErrCodeSchema, ce.Code())
	}
}

func TestLoadSchema_MissingFile(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "nope.cue"))
	assert.ErrorContains(t, err, "read schema")
}
