package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/ir"
	"github.com/roach88/factlog/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Schema   string
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Batches       int      `json:"batches"`
	Base          int      `json:"base"`
	Derived       []string `json:"derived"`
	Deterministic bool     `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [rules]",
		Short: "Rebuild the fact store from the journal and verify determinism",
		Long: `Replay every journaled batch into a fresh engine, twice, and verify
both runs end with identical base and derived facts. Batch checksums are
verified before anything is applied.

Exit codes:
  0 - Replay succeeded and is deterministic
  1 - Replay failed (checksum mismatch, invalid fact, differing results)
  2 - Command error (journal not found, etc.)

Examples:
  factlog replay --db ./factlog.db rules.dl
  factlog replay --db ./factlog.db rules.dl --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (default from config)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE vocabulary declaring base predicates")

	return cmd
}

func runReplay(opts *ReplayOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	path, err := opts.rulesPath(args)
	if err != nil {
		return err
	}
	prog, err := opts.loadProgram(path, opts.Schema)
	if err != nil {
		return f.Fail("replay failed", err)
	}

	j, err := opts.openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	first, n, err := replayInto(ctx, j, prog, opts.engineOptions())
	if err != nil {
		return f.Fail("first replay failed", err)
	}
	second, _, err := replayInto(ctx, j, prog, opts.engineOptions())
	if err != nil {
		return f.Fail("second replay failed", err)
	}

	derived := first.DerivedFacts()
	result := ReplayResult{
		Batches: n,
		Base:    first.Stats().Base,
		Derived: make([]string, 0, len(derived)),
		Deterministic: sameFacts(first.BaseFacts(), second.BaseFacts()) &&
			sameFacts(derived, second.DerivedFacts()),
	}
	for _, fact := range derived {
		result.Derived = append(result.Derived, fact.String())
	}
	f.VerboseLog("replayed %d batches: %d base facts, %d derived facts", n, result.Base, len(derived))

	if !result.Deterministic {
		if opts.Format == "json" {
			if err := f.Error(ErrCodeNondeterministic, "replay is not deterministic", result); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "✗ replay is not deterministic: runs ended with different facts")
		}
		return NewExitError(ExitFailure, "replay is not deterministic")
	}

	lines := append([]string{fmt.Sprintf("✓ replayed %d batches deterministically", n)}, result.Derived...)
	if err := f.Emit(result, lines...); err != nil {
		return err
	}
	return opts.writeMetrics(f.GetErrWriter())
}

// replayInto rebuilds a fresh engine from the journal.
func replayInto(ctx context.Context, j *journal.Journal, prog *compiler.Program, opts []engine.EngineOption) (*engine.Engine, int, error) {
	e := engine.New(prog, opts...)
	n, err := j.Replay(ctx, e)
	if err != nil {
		return nil, n, err
	}
	return e, n, nil
}

func sameFacts(a, b []ir.Fact) bool {
	return slices.EqualFunc(a, b, func(x, y ir.Fact) bool {
		return ir.CompareFacts(x, y) == 0
	})
}
