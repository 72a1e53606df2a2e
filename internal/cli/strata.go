package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/engine"
)

// StrataOptions holds flags for the strata command.
type StrataOptions struct {
	*RootOptions
	Schema string
}

// PredicateEntry is one predicate in strata output.
type PredicateEntry struct {
	Name      string `json:"name"`
	Arity     int    `json:"arity"`
	Kind      string `json:"kind"`
	Stratum   int    `json:"stratum"`
	Recursive bool   `json:"recursive,omitempty"`
}

// StratumEntry groups the predicates and rules of one stratum.
type StratumEntry struct {
	Index      int              `json:"index"`
	Predicates []PredicateEntry `json:"predicates"`
	Rules      []string         `json:"rules"`
}

// NewStrataCommand creates the strata command.
func NewStrataCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StrataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "strata [rules]",
		Short: "List predicates and rules by stratum",
		Long: `Compile a rules file and print its strata in evaluation order: the
predicates assigned to each stratum and the rules that derive them.

Examples:
  factlog strata rules.dl
  factlog strata rules.dl --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrata(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE vocabulary declaring base predicates")

	return cmd
}

func runStrata(opts *StrataOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	f := opts.formatter(cmd)

	path, err := opts.rulesPath(args)
	if err != nil {
		return err
	}
	prog, err := opts.loadProgram(path, opts.Schema)
	if err != nil {
		return f.Fail("strata failed", err)
	}

	e := engine.New(prog, opts.engineOptions()...)
	strata := groupStrata(e.ListPredicates(), e.ListRules())

	return f.Emit(strata, renderStrata(strata))
}

// groupStrata merges predicate and rule listings into one entry per stratum.
func groupStrata(preds []engine.PredicateInfo, rules []engine.StratumRules) []StratumEntry {
	var out []StratumEntry
	entry := func(idx int) *StratumEntry {
		for i := range out {
			if out[i].Index == idx {
				return &out[i]
			}
		}
		out = append(out, StratumEntry{Index: idx, Predicates: []PredicateEntry{}, Rules: []string{}})
		return &out[len(out)-1]
	}

	for _, p := range preds {
		s := entry(p.Stratum)
		s.Predicates = append(s.Predicates, PredicateEntry{
			Name:      p.Name,
			Arity:     p.Arity,
			Kind:      p.Kind.String(),
			Stratum:   p.Stratum,
			Recursive: p.Recursive,
		})
	}
	for _, sr := range rules {
		s := entry(sr.Index)
		s.Rules = append(s.Rules, sr.Rules...)
	}
	return out
}

func renderStrata(strata []StratumEntry) string {
	var b strings.Builder
	for i, s := range strata {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "stratum %d\n", s.Index)
		for _, p := range s.Predicates {
			fmt.Fprintf(&b, "  %s/%d %s", p.Name, p.Arity, p.Kind)
			if p.Recursive {
				b.WriteString(" recursive")
			}
			b.WriteByte('\n')
		}
		for _, r := range s.Rules {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
