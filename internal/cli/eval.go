package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/engine"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Facts      []string
	Schema     string
	Predicates []string // only print these derived predicates
}

// EvalResult is the output of the eval command.
type EvalResult struct {
	Base    int      `json:"base"`
	Derived []string `json:"derived"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval [rules]",
		Short: "Evaluate rules over fact files and print derived facts",
		Long: `Load one or more fact files, evaluate the rules to fixpoint, and print
every derived fact in fact order.

Examples:
  factlog eval rules.dl --facts issues.facts
  factlog eval rules.dl --facts a.facts --facts b.facts --predicate stale_issue
  factlog eval rules.dl --facts issues.facts --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Facts, "facts", nil, "fact file (repeatable)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE vocabulary declaring base predicates")
	cmd.Flags().StringSliceVarP(&opts.Predicates, "predicate", "p", nil, "only print these predicates")

	return cmd
}

func runEval(opts *EvalOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	f := opts.formatter(cmd)

	e, err := opts.buildEngine(cmd, args, opts.Schema, opts.Facts)
	if err != nil {
		return f.Fail("eval failed", err)
	}
	if err := e.Evaluate(cmd.Context()); err != nil {
		return f.Fail("eval failed", err)
	}

	result := EvalResult{
		Base:    e.Stats().Base,
		Derived: []string{},
	}
	for _, fact := range e.DerivedFacts() {
		if len(opts.Predicates) == 0 || slices.Contains(opts.Predicates, fact.Predicate) {
			result.Derived = append(result.Derived, fact.String())
		}
	}
	f.VerboseLog("%d base facts, %d derived facts", result.Base, len(result.Derived))

	if err := f.Emit(result, result.Derived...); err != nil {
		return err
	}
	return opts.writeMetrics(f.GetErrWriter())
}

// buildEngine compiles the rules and loads the fact files into a new engine.
func (o *RootOptions) buildEngine(cmd *cobra.Command, args []string, schema string, factFiles []string) (*engine.Engine, error) {
	path, err := o.rulesPath(args)
	if err != nil {
		return nil, err
	}
	prog, err := o.loadProgram(path, schema)
	if err != nil {
		return nil, err
	}
	facts, err := readFacts(factFiles)
	if err != nil {
		return nil, err
	}
	e := engine.New(prog, o.engineOptions()...)
	if err := submit(cmd.Context(), e, facts); err != nil {
		return nil, err
	}
	return e, nil
}
