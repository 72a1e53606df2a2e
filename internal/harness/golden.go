package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden snapshots live, relative to the test package.
const GoldenDir = "testdata/golden"

// Snapshot is the golden form of a result: everything except pass/fail.
type Snapshot struct {
	Name      string      `json:"name"`
	LoadError string      `json:"load_error,omitempty"`
	Trace     []StepTrace `json:"trace"`
	Derived   []string    `json:"derived"`
}

// SnapshotOf returns the golden form of r.
func SnapshotOf(r *Result) Snapshot {
	return Snapshot{Name: r.Name, LoadError: r.LoadError, Trace: r.Trace, Derived: r.Derived}
}

// MarshalSnapshot renders r's snapshot as indented JSON with a trailing
// newline.
func MarshalSnapshot(r *Result) ([]byte, error) {
	data, err := json.MarshalIndent(SnapshotOf(r), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario, fails t on any failed expectation, and
// compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario, opts ...Option) error {
	t.Helper()

	result, err := Run(context.Background(), sc, opts...)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", sc.Name, msg)
	}
	return AssertGolden(t, sc.Name, result)
}

// AssertGolden compares result's snapshot against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
