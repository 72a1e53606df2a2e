package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/factlog/internal/compiler"
	"github.com/roach88/factlog/internal/factstore"
	"github.com/roach88/factlog/internal/ir"
)

// DefaultMaxRounds is the default per-stratum fixpoint round ceiling.
const DefaultMaxRounds = 10000

// Engine evaluates one compiled program over its own fact store.
//
// Thread-safety model:
//   - Query, Lookup, Explain, List*, Stats: read lock, may run concurrently
//   - SubmitFacts, RetractFacts, ApplyDelta, Evaluate: write lock for the
//     whole call
//
// INVARIANTS:
//   - prog never changes after construction
//   - a failed mutation leaves the store exactly as it was
type Engine struct {
	mu    sync.RWMutex
	prog  *compiler.Program
	store *factstore.Store
	clock *Clock

	plans    [][]*rulePlan
	byHead   map[string][]*rulePlan
	negUsers map[string][]negUse

	maxRounds int
	log       *zap.Logger
	metrics   *Metrics

	// seeded is set once a full evaluation has committed. Until then the
	// derived partition may lack facts of rules without positive literals,
	// which no delta can trigger.
	seeded bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxRounds sets the per-stratum round ceiling.
// Zero or a negative value disables the ceiling.
func WithMaxRounds(n int) EngineOption {
	return func(e *Engine) {
		e.maxRounds = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records engine activity into m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the logical clock, so Version continues from the
// clock's current value.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an Engine with an empty store for prog. Derived facts are
// first computed by Evaluate or by the first delta.
func New(prog *compiler.Program, opts ...EngineOption) *Engine {
	e := &Engine{
		prog:      prog,
		store:     factstore.New(prog.Decls()),
		clock:     NewClock(),
		maxRounds: DefaultMaxRounds,
		log:       zap.NewNop(),
	}
	e.plans, e.byHead, e.negUsers = buildPlans(prog)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Program returns the engine's compiled program.
func (e *Engine) Program() *compiler.Program {
	return e.prog
}

// Version returns the number of committed mutations so far.
func (e *Engine) Version() int64 {
	return e.clock.Current()
}

// Evaluate recomputes every derived fact from the current base facts.
// On error the store is left unchanged.
func (e *Engine) Evaluate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.store.Begin()
	derived, err := e.evaluateAll(ctx)
	e.finish("evaluate", start, err)
	if err != nil {
		return err
	}
	e.seeded = true
	e.log.Info("evaluation complete",
		zap.String("kind", "evaluate"),
		zap.Duration("duration", time.Since(start)),
		zap.Int("derived", derived),
		zap.Int64("version", e.clock.Current()),
	)
	return nil
}

// ApplyDelta applies base-fact retractions then additions and updates the
// derived facts incrementally. The result lists derived facts that appeared
// and disappeared.
//
// Every fact is validated before anything changes; an invalid fact fails the
// whole call with UnknownPredicateError or ArityMismatchError.
// On any error the store is left unchanged.
func (e *Engine) ApplyDelta(ctx context.Context, d Delta) (DeltaResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(ctx, d)
}

func (e *Engine) applyLocked(ctx context.Context, d Delta) (DeltaResult, error) {
	if err := e.validateDelta(d); err != nil {
		return DeltaResult{}, err
	}
	start := time.Now()
	e.store.Begin()
	res, err := e.applyDelta(ctx, d)
	e.finish("delta", start, err)
	if err != nil {
		return DeltaResult{}, err
	}
	e.seeded = true
	e.log.Info("delta applied",
		zap.String("kind", "delta"),
		zap.Duration("duration", time.Since(start)),
		zap.Int("asserted", len(d.Added)),
		zap.Int("retracted", len(d.Retracted)),
		zap.Int("derived_added", len(res.Added)),
		zap.Int("derived_removed", len(res.Removed)),
		zap.Int64("version", e.clock.Current()),
	)
	return res, nil
}

// finish commits or rolls back the open transaction and records the run.
func (e *Engine) finish(kind string, start time.Time, err error) {
	if err != nil {
		e.store.Rollback()
		e.log.Warn("run rolled back", zap.String("kind", kind), zap.Error(err))
	} else {
		e.store.Commit()
		e.clock.Next()
	}
	e.metrics.observeRun(kind, start, err)
	st := e.store.Stats()
	e.metrics.setFacts(st.Base, st.Derived)
}

// RejectReason classifies a submitted fact that was not accepted.
type RejectReason string

const (
	RejectArityMismatch    RejectReason = "ArityMismatch"
	RejectUnknownPredicate RejectReason = "UnknownPredicate"
)

// Rejection is one submitted fact that was not accepted.
type Rejection struct {
	Fact   ir.Fact
	Reason RejectReason
	Err    error
}

// SubmitResult reports how a batch of submitted facts was handled.
type SubmitResult struct {
	Accepted int
	Rejected []Rejection
	Changes  DeltaResult
}

// SubmitFacts asserts a batch of base facts as one delta.
//
// Invalid facts are rejected individually with a reason; the valid ones are
// applied together. Duplicates of stored facts are accepted as no-ops.
// The returned error is reserved for run failures such as cancellation, in
// which case nothing was applied.
func (e *Engine) SubmitFacts(ctx context.Context, facts []ir.Fact) (SubmitResult, error) {
	var res SubmitResult
	var accepted []ir.Fact
	for _, f := range facts {
		err := e.store.CheckBase(f)
		if err == nil {
			accepted = append(accepted, f)
			continue
		}
		reason := RejectUnknownPredicate
		var ae *factstore.ArityMismatchError
		if errors.As(err, &ae) {
			reason = RejectArityMismatch
		}
		e.metrics.reject(reason)
		res.Rejected = append(res.Rejected, Rejection{Fact: f, Reason: reason, Err: err})
	}
	if len(res.Rejected) > 0 {
		e.log.Debug("facts rejected", zap.Int("count", len(res.Rejected)))
	}
	if len(accepted) == 0 {
		return res, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	changes, err := e.applyLocked(ctx, Delta{Added: accepted})
	if err != nil {
		return SubmitResult{Rejected: res.Rejected}, err
	}
	res.Accepted = len(accepted)
	res.Changes = changes
	return res, nil
}

// RetractFacts retracts one base fact and reports whether it was present.
// Derived facts that lose their last support are retracted with it.
func (e *Engine) RetractFacts(ctx context.Context, predicate string, t ir.Tuple) (bool, error) {
	f := ir.Fact{Predicate: predicate, Args: t}
	if err := e.store.CheckBase(f); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Contains(f) {
		return false, nil
	}
	if _, err := e.applyLocked(ctx, Delta{Retracted: []ir.Fact{f}}); err != nil {
		return false, err
	}
	return true, nil
}
