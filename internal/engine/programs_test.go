package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/ir"
)

// randomProgram is a stratifiable binary-relation program rendered in both
// factlog and Mangle syntax.
type randomProgram struct {
	rules   []string
	mangle  []string
	derived []string
}

var randomBase = []string{"e0", "e1"}

// genProgram builds rules over base relations e0, e1 and derived d0..dn.
// d_i may use any d_j with j <= i positively and only j < i under negation,
// so every generated program is stratifiable.
func genProgram(r *rand.Rand) randomProgram {
	var p randomProgram
	n := 2 + r.IntN(3)
	pick := func(upTo int) string {
		k := r.IntN(len(randomBase) + upTo)
		if k < len(randomBase) {
			return randomBase[k]
		}
		return fmt.Sprintf("d%d", k-len(randomBase))
	}
	add := func(head, body, mangleBody string) {
		p.rules = append(p.rules, head+" :- "+body+".")
		p.mangle = append(p.mangle, head+" :- "+mangleBody+".")
	}

	for i := 0; i < n; i++ {
		head := fmt.Sprintf("d%d", i)
		p.derived = append(p.derived, head)

		src := pick(i)
		add(head+"(X, Y)", src+"(X, Y)", src+"(X, Y)")

		for extra := r.IntN(3); extra > 0; extra-- {
			switch r.IntN(4) {
			case 0:
				a, b := pick(i+1), pick(i+1)
				body := fmt.Sprintf("%s(X, Y), %s(Y, Z)", a, b)
				add(head+"(X, Z)", body, body)
			case 1:
				a, neg := pick(i+1), pick(i)
				add(head+"(X, Y)",
					fmt.Sprintf("%s(X, Y), not %s(X, Y)", a, neg),
					fmt.Sprintf("%s(X, Y), !%s(X, Y)", a, neg))
			case 2:
				a, neg := pick(i+1), pick(i)
				add(head+"(X, Y)",
					fmt.Sprintf("%s(X, Y), not %s(Y, X)", a, neg),
					fmt.Sprintf("%s(X, Y), !%s(Y, X)", a, neg))
			case 3:
				a := pick(i + 1)
				add(head+"(Y, X)", a+"(X, Y)", a+"(X, Y)")
			}
		}
	}
	return p
}

func (p randomProgram) source() string {
	return strings.Join(p.rules, "\n")
}

// genFacts returns a random subset of base facts over a small domain for
// every base predicate the program declares.
func genFacts(r *rand.Rand, prog *compiler.Program, density float64) []ir.Fact {
	var out []ir.Fact
	for _, d := range prog.Decls() {
		if d.Kind != ir.Base {
			continue
		}
		for x := int64(1); x <= 4; x++ {
			for y := int64(1); y <= 4; y++ {
				if r.Float64() < density {
					out = append(out, ir.NewFact(d.Name, ir.Int(x), ir.Int(y)))
				}
			}
		}
	}
	return out
}
