package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factlog/internal/ir"
)

func TestMetrics_RecordsRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	e := newEngine(t, reachRules, WithMetrics(m))

	res, err := e.SubmitFacts(ctx, []ir.Fact{
		ir.NewFact("edge", ir.Int(1), ir.Int(2)),
		ir.NewFact("edge", ir.Int(2), ir.Int(3)),
		ir.NewFact("edge", ir.Int(1)),
		ir.NewFact("nope", ir.Int(1)),
	})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("delta", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues(string(RejectArityMismatch))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues(string(RejectUnknownPredicate))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.facts.WithLabelValues("base")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.facts.WithLabelValues("derived")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.derivations))
	assert.Positive(t, testutil.ToFloat64(m.rounds))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, e.Evaluate(cancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("evaluate", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.facts.WithLabelValues("derived")), "rolled back run keeps the gauge")
}

func TestMetrics_LimitOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.observeRun("evaluate", time.Now(), newRuntimeError("evaluate", 0, &EvaluationLimitExceededError{Limit: 1, Rounds: 2}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("evaluate", "limit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeRun("delta", time.Now(), nil)
		m.round()
		m.derivation()
		m.reject(RejectArityMismatch)
		m.setFacts(1, 2)
	})
}
