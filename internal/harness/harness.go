package harness

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/ir"
)

// Option configures scenario runs.
type Option func(*runConfig)

type runConfig struct {
	log       *zap.Logger
	maxRounds int
}

// WithLogger sets the logger passed to every scenario engine.
func WithLogger(l *zap.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxRounds sets the default round limit for scenarios that do not
// set max_rounds.
func WithMaxRounds(n int) Option {
	return func(c *runConfig) {
		c.maxRounds = n
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh engine. A returned error means the scenario
// could not be run at all (unreadable files); failed expectations are
// reported in Result.Errors instead.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{log: zap.NewNop(), maxRounds: engine.DefaultMaxRounds}
	for _, opt := range opts {
		opt(&cfg)
	}
	if sc.MaxRounds != 0 {
		cfg.maxRounds = sc.MaxRounds
	}
	log := cfg.log.With(zap.String("scenario", sc.Name))
	result := NewResult(sc.Name)

	prog, err := loadProgram(sc)
	if err != nil {
		kind := ErrorKind(err)
		if kind == "" {
			return nil, err
		}
		result.LoadError = kind
		switch {
		case sc.LoadError == "":
			result.AddError(fmt.Sprintf("load: unexpected %s: %v", kind, err))
		case sc.LoadError != kind:
			result.AddError(fmt.Sprintf("load: expected %s, got %s: %v", sc.LoadError, kind, err))
		}
		return result, nil
	}
	if sc.LoadError != "" {
		result.AddError(fmt.Sprintf("load: expected %s, program loaded", sc.LoadError))
		return result, nil
	}

	e := engine.New(prog, engine.WithLogger(log), engine.WithMaxRounds(cfg.maxRounds))
	for i, step := range sc.Steps {
		out := runStep(ctx, e, step)
		out.trace.Step = i + 1
		result.Trace = append(result.Trace, out.trace)
		for _, err := range checkStep(ctx, e, i, step, out) {
			result.AddError(err.Error())
		}
		log.Debug("step completed", zap.Int("step", i+1), zap.String("kind", step.Kind()), zap.String("error", out.trace.Error))
	}
	result.Derived = factStrings(e.DerivedFacts())
	return result, nil
}

func loadProgram(sc *Scenario) (*compiler.Program, error) {
	src := sc.Rules
	if sc.RulesFile != "" {
		data, err := os.ReadFile(sc.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		src = string(data)
	}
	var schema *compiler.Schema
	if sc.Schema != "" {
		s, err := compiler.LoadSchema(sc.Schema)
		if err != nil {
			return nil, err
		}
		schema = s
	}
	return compiler.Load(src, schema)
}

// runStep performs the step's action.
func runStep(ctx context.Context, e *engine.Engine, step Step) outcome {
	var out outcome
	out.trace.Kind = step.Kind()

	switch step.Kind() {
	case StepAssert:
		facts, err := compiler.ParseFacts(step.Assert)
		if err != nil {
			out.err = err
			break
		}
		res, err := e.SubmitFacts(ctx, facts)
		if err != nil {
			out.err = err
			break
		}
		for _, r := range res.Rejected {
			out.trace.Rejected = append(out.trace.Rejected, fmt.Sprintf("%s: %s", r.Fact, r.Reason))
			if out.err == nil {
				out.err = r.Err
			}
		}
		out.trace.Added = factStrings(res.Changes.Added)
		out.trace.Removed = factStrings(res.Changes.Removed)

	case StepRetract:
		facts, err := compiler.ParseFacts(step.Retract)
		if err != nil {
			out.err = err
			break
		}
		res, err := e.ApplyDelta(ctx, engine.Delta{Retracted: facts})
		if err != nil {
			out.err = err
			break
		}
		out.trace.Added = factStrings(res.Added)
		out.trace.Removed = factStrings(res.Removed)

	case StepEvaluate:
		out.err = e.Evaluate(ctx)

	case StepQuery:
		bindings, err := e.QueryString(ctx, step.Query)
		if err != nil {
			out.err = err
			break
		}
		for b := range bindings {
			out.trace.Rows = append(out.trace.Rows, b.String())
		}
	}

	if out.err != nil {
		out.trace.Error = ErrorKind(out.err)
		if out.trace.Error == "" {
			out.trace.Error = out.err.Error()
		}
	}
	return out
}

func factStrings(facts []ir.Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.String()
	}
	return out
}

// RunAll runs scenarios concurrently, at most parallel at a time (0 means
// no limit), and returns results in input order. It stops at the first
// scenario that cannot be run.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			r, err := Run(gctx, sc, opts...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
