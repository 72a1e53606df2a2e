package compiler

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/factlog/internal/ir"
)

// vocabularyDef constrains predicate vocabulary files.
const vocabularyDef = `
#Predicate: {
	arity: int & >=0 & <=64
	kind?: "base" | "derived"
	doc?:  string
}
predicates: {
	[=~"^[a-z][A-Za-z0-9_]*$"]: #Predicate
	[!~"^[a-z][A-Za-z0-9_]*$"]: _|_
}
`

// SchemaPredicate is one declared predicate.
type SchemaPredicate struct {
	Name    string
	Arity   int
	Kind    ir.PredicateKind
	KindSet bool // kind was written explicitly
	Doc     string
}

// Schema is a predicate vocabulary. Declared predicates are accepted by
// ingestion even when no rule mentions them.
type Schema struct {
	Predicates []SchemaPredicate
}

// LoadSchema reads a CUE vocabulary file.
//
//	predicates: {
//		issue:          {arity: 6, kind: "base", doc: "id, title, author, state, created, updated"}
//		mentions_issue: {arity: 2}
//	}
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return compileSchema(data, path)
}

// ParseSchema compiles vocabulary source held in memory.
func ParseSchema(src string) (*Schema, error) {
	return compileSchema([]byte(src), "schema.cue")
}

func compileSchema(data []byte, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	def := ctx.CompileString(vocabularyDef, cue.Filename("vocabulary.cue"))
	if err := def.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if !v.LookupPath(cue.ParsePath("predicates")).Exists() {
		return nil, &CompileError{
			Field:   "predicates",
			Message: "predicates is required",
			Pos:     v.Pos(),
		}
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	predsVal := unified.LookupPath(cue.ParsePath("predicates"))

	iter, err := predsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	schema := &Schema{}
	for iter.Next() {
		p, err := parseSchemaPredicate(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		schema.Predicates = append(schema.Predicates, p)
	}
	slices.SortFunc(schema.Predicates, func(a, b SchemaPredicate) int {
		return strings.Compare(a.Name, b.Name)
	})
	return schema, nil
}

func parseSchemaPredicate(name string, v cue.Value) (SchemaPredicate, error) {
	p := SchemaPredicate{Name: name, Kind: ir.Base}

	arity, err := v.LookupPath(cue.ParsePath("arity")).Int64()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.Arity = int(arity)

	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() && kindVal.IsConcrete() {
		kind, err := kindVal.String()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.KindSet = true
		if kind == "derived" {
			p.Kind = ir.Derived
		}
	}

	if docVal := v.LookupPath(cue.ParsePath("doc")); docVal.Exists() && docVal.IsConcrete() {
		doc, err := docVal.String()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Doc = doc
	}
	return p, nil
}
