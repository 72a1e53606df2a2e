// Package harness runs rule-program scenarios as executable tests.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: stale_issue
//	description: "An open issue with no comment is stale"
//	rules: |
//	  stale(I) :- issue(I, open), not comment(I, _).
//	steps:
//	  - assert: |
//	      issue(1, open).
//	    expect:
//	      added: ["stale(1)"]
//	  - query: stale(X)
//	    expect:
//	      rows: ["X=1"]
//	  - retract: |
//	      issue(1, open).
//	    expect:
//	      removed: ["stale(1)"]
//
// rules_file may replace rules, and schema names a CUE vocabulary; both are
// relative to the scenario file. load_error names the error kind the program
// is expected to fail with, in which case steps are optional.
//
// # Steps
//
// Each step does at most one of assert, retract, evaluate or query. A step
// with none only checks its expectations against the current store.
//
// # Expectations
//
//   - contains / absent: facts that must or must not be stored
//   - added / removed: derived changes reported by an assert or retract
//   - rows / count: query bindings (order-insensitive) and their number
//   - error: error kind the step must fail with (see ErrorKind)
//
// Every step runs in order against one engine; the result trace and the
// final derived facts form the golden snapshot.
package harness
