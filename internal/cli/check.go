package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/compiler"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Schema string
}

// CheckResult summarizes a successfully compiled program.
type CheckResult struct {
	Rules      int    `json:"rules"`
	Predicates int    `json:"predicates"`
	Strata     int    `json:"strata"`
	Hash       string `json:"hash"`

	Notes []compiler.RecursionNote `json:"notes,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [rules]",
		Short: "Parse rules and verify safety and stratification",
		Long: `Parse a rules file, check every rule for range restriction, and
compute the stratification. No facts are loaded.

Exit codes:
  0 - Rules are valid
  1 - Rules failed to load (parse, safety, stratification, declaration)
  2 - Command error (file not found, etc.)

Examples:
  factlog check rules.dl
  factlog check rules.dl --schema vocabulary.cue
  factlog check rules.dl --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE vocabulary declaring base predicates")

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
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
		return f.Fail("check failed", err)
	}

	result := CheckResult{
		Rules:      len(prog.Rules),
		Predicates: len(prog.Predicates),
		Strata:     len(prog.Strata.Strata),
		Hash:       prog.Hash,
		Notes:      compiler.AnalyzeRecursion(slices.Sorted(maps.Keys(prog.Predicates)), prog.Rules),
	}
	lines := []string{fmt.Sprintf("✓ %s: %d rules, %d predicates, %d strata", path, result.Rules, result.Predicates, result.Strata)}
	for _, n := range result.Notes {
		lines = append(lines, "  "+n.Message)
	}
	return f.Emit(result, lines...)
}
