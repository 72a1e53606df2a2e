package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/journal"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
	Retract  bool
}

// IngestResult describes the appended batch.
type IngestResult struct {
	BatchID   string `json:"batch_id"`
	Seq       int64  `json:"seq"`
	Checksum  string `json:"checksum"`
	Added     int    `json:"added"`
	Retracted int    `json:"retracted"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <facts>...",
		Short: "Append fact files to the journal as one batch",
		Long: `Parse fact files and append them to the journal as a single batch of
assertions, or retractions with --retract. Facts are not checked against
any rules here; replay validates them.

Examples:
  factlog ingest --db ./factlog.db issues.facts
  factlog ingest --db ./factlog.db --retract closed.facts`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (default from config)")
	cmd.Flags().BoolVar(&opts.Retract, "retract", false, "record the facts as retractions")

	return cmd
}

func runIngest(opts *IngestOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	f := opts.formatter(cmd)

	facts, err := readFacts(args)
	if err != nil {
		return f.Fail("ingest failed", err)
	}
	var d engine.Delta
	if opts.Retract {
		d.Retracted = facts
	} else {
		d.Added = facts
	}

	j, err := opts.openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	b, err := j.Append(cmd.Context(), d)
	if err != nil {
		return f.Fail("ingest failed", err)
	}

	result := IngestResult{
		BatchID:   b.ID,
		Seq:       b.Seq,
		Checksum:  b.Checksum,
		Added:     len(b.Added),
		Retracted: len(b.Retracted),
	}
	return f.Emit(result, fmt.Sprintf("✓ batch %d (%s): +%d -%d", result.Seq, result.BatchID, result.Added, result.Retracted))
}

// openJournal opens the journal named by the flag or the config.
func (o *RootOptions) openJournal(path string) (*journal.Journal, error) {
	if path == "" {
		path = o.cfg.Journal.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no journal: pass --db or set journal.path in the config")
	}
	j, err := journal.Open(path, journal.WithLogger(o.log))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}
