package cli

import (
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/factlog/internal/config"
	"github.com/roach88/factlog/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to factlog.yaml; empty uses ./factlog.yaml when present

	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *engine.Metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the factlog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "factlog",
		Short: "factlog - deductive fact store and rule engine",
		Long: `factlog evaluates stratified Datalog rules over a store of base facts,
maintains derived facts incrementally, and answers pattern queries.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./"+config.DefaultFile+" when present)")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewStrataCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads the config and builds the logger once. Subcommands call it
// too, so they work when executed without the root command.
func (o *RootOptions) setup() error {
	if o.cfg != nil {
		return nil
	}
	cfg, err := config.Load(o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	log, err := cfg.Log.NewLogger(o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	o.cfg = cfg
	o.log = log
	if cfg.Metrics.Enabled {
		o.registry = prometheus.NewRegistry()
		o.metrics = engine.NewMetrics(o.registry)
	}
	return nil
}

// engineOptions returns the engine options implied by the config.
func (o *RootOptions) engineOptions() []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithLogger(o.log),
		engine.WithMaxRounds(o.cfg.Engine.MaxRoundsPerStratum),
		engine.WithMetrics(o.metrics),
	}
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
