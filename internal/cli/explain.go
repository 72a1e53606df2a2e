package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/engine"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Facts  []string
	Schema string
	Depth  int
}

// ProofNode is the JSON form of a proof tree.
type ProofNode struct {
	Fact      string      `json:"fact"`
	Base      bool        `json:"base,omitempty"`
	Cycle     bool        `json:"cycle,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
	Supports  []ProofEdge `json:"supports,omitempty"`
}

// ProofEdge is one support of a derived fact.
type ProofEdge struct {
	ID       string       `json:"id"`
	Rule     string       `json:"rule"`
	Text     string       `json:"text"`
	Premises []*ProofNode `json:"premises,omitempty"`
	Absent   []string     `json:"absent,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain [rules] <fact>",
		Short: "Show why a fact holds",
		Long: `Load fact files, evaluate the rules, and print the support tree of a
fact: every rule instance that derives it, the premises each one used, and
the patterns that had to be absent.

Examples:
  factlog explain rules.dl --facts issues.facts 'stale_issue(7)'
  factlog explain rules.dl --facts graph.facts 'reach(1, 4)' --depth 3`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Facts, "facts", nil, "fact file (repeatable)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE vocabulary declaring base predicates")
	cmd.Flags().IntVar(&opts.Depth, "depth", engine.DefaultExplainDepth, "maximum proof depth")

	return cmd
}

func runExplain(opts *ExplainOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	f := opts.formatter(cmd)

	fact, err := compiler.ParseFact(args[len(args)-1])
	if err != nil {
		return f.Fail("explain failed", err)
	}
	e, err := opts.buildEngine(cmd, args[:len(args)-1], opts.Schema, opts.Facts)
	if err != nil {
		return f.Fail("explain failed", err)
	}
	proof, err := e.Explain(fact, opts.Depth)
	if err != nil {
		return f.Fail("explain failed", err)
	}

	return f.Emit(proofNode(proof), strings.TrimSuffix(proof.String(), "\n"))
}

func proofNode(p *engine.Proof) *ProofNode {
	n := &ProofNode{
		Fact:      p.Fact.String(),
		Base:      p.Base,
		Cycle:     p.Cycle,
		Truncated: p.Truncated,
	}
	for _, s := range p.Supports {
		edge := ProofEdge{ID: s.ID, Rule: s.Rule, Text: s.Text}
		for _, prem := range s.Premises {
			edge.Premises = append(edge.Premises, proofNode(prem))
		}
		for _, neg := range s.Absent {
			edge.Absent = append(edge.Absent, neg.Predicate+neg.Pattern.String())
		}
		n.Supports = append(n.Supports, edge)
	}
	return n
}
