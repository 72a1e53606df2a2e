package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Facts  []string
	Schema string
	Limit  int
}

// QueryRow is one answer in query output.
type QueryRow struct {
	Fact     string            `json:"fact"`
	Bindings map[string]string `json:"bindings,omitempty"`
}

// QueryResult is the output of the query command.
type QueryResult struct {
	Query string     `json:"query"`
	Rows  []QueryRow `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [rules] <pattern>",
		Short: "Query base and derived facts with a pattern",
		Long: `Load fact files, evaluate the rules, and print the answers to a pattern
such as 'issue(X, _, open)'. Named variables are printed as bindings; a
ground pattern prints the fact when it holds.

Querying an unknown predicate fails with E301.

Examples:
  factlog query rules.dl --facts issues.facts 'stale_issue(X)'
  factlog query rules.dl --facts issues.facts 'reach(1, Y)' --limit 10`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Facts, "facts", nil, "fact file (repeatable)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE vocabulary declaring base predicates")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many answers (0 = all)")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	f := opts.formatter(cmd)

	pattern := args[len(args)-1]
	e, err := opts.buildEngine(cmd, args[:len(args)-1], opts.Schema, opts.Facts)
	if err != nil {
		return f.Fail("query failed", err)
	}
	seq, err := e.QueryString(cmd.Context(), pattern)
	if err != nil {
		return f.Fail("query failed", err)
	}

	result := QueryResult{Query: pattern, Rows: []QueryRow{}}
	var lines []string
	for b := range seq {
		row := QueryRow{Fact: b.Fact.String()}
		if len(b.Vars) == 0 {
			lines = append(lines, row.Fact)
		} else {
			row.Bindings = make(map[string]string, len(b.Vars))
			for v, c := range b.Vars {
				row.Bindings[string(v)] = c.String()
			}
			lines = append(lines, b.String())
		}
		result.Rows = append(result.Rows, row)
		if opts.Limit > 0 && len(result.Rows) == opts.Limit {
			break
		}
	}

	lines = append(lines, fmt.Sprintf("(%d answers)", len(result.Rows)))
	return f.Emit(result, lines...)
}
