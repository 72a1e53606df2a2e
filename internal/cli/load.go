package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/common/expfmt"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/ir"
)

// rulesPath returns the rules file named on the command line or in the config.
func (o *RootOptions) rulesPath(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if o.cfg.Rules != "" {
		return o.cfg.Rules, nil
	}
	return "", NewExitError(ExitCommandError, "no rules file: pass one or set rules in the config")
}

// loadProgram reads and compiles a rules file, with an optional CUE schema.
// An empty schemaPath falls back to the configured schema.
func (o *RootOptions) loadProgram(rulesPath, schemaPath string) (*compiler.Program, error) {
	src, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	if schemaPath == "" {
		schemaPath = o.cfg.Schema
	}
	var schema *compiler.Schema
	if schemaPath != "" {
		if schema, err = compiler.LoadSchema(schemaPath); err != nil {
			return nil, err
		}
	}
	prog, err := compiler.Load(string(src), schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rulesPath, err)
	}
	o.log.Debug("rules loaded")
	return prog, nil
}

// readFacts parses every fact file in order.
func readFacts(paths []string) ([]ir.Fact, error) {
	var out []ir.Fact
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read facts: %w", err)
		}
		facts, err := compiler.ParseFacts(string(src))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, facts...)
	}
	return out, nil
}

// submit asserts facts into e. Any rejected fact fails the command.
func submit(ctx context.Context, e *engine.Engine, facts []ir.Fact) error {
	res, err := e.SubmitFacts(ctx, facts)
	if err != nil {
		return err
	}
	if len(res.Rejected) > 0 {
		r := res.Rejected[0]
		return fmt.Errorf("%d fact(s) rejected, first %s: %w", len(res.Rejected), r.Fact, r.Err)
	}
	return nil
}

// writeMetrics dumps the registry in the Prometheus text format when
// metrics are enabled.
func (o *RootOptions) writeMetrics(w io.Writer) error {
	if o.registry == nil {
		return nil
	}
	families, err := o.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
