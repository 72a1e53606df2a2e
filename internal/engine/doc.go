// Package engine evaluates a compiled rule program over a fact store.
//
// An Engine owns one factstore.Store and one immutable compiler.Program.
// It derives facts bottom-up, stratum by stratum, and keeps them consistent
// as base facts are asserted and retracted.
//
// ARCHITECTURE:
//
// Evaluation:
//   - Evaluate recomputes every derived fact from scratch. Each stratum runs
//     one naive round over its rules, then semi-naive rounds where a rule is
//     re-applied once per positive body literal that received new facts,
//     reading only that delta for the literal.
//   - ApplyDelta maintains derived facts incrementally: support counting for
//     non-recursive predicates, delete and re-derive for recursive ones,
//     semi-naive insertion, and re-seeding of rules whose negated literals
//     lost matches.
//
// Every derived fact carries its supports: the rule, the bindings of the
// rule's positive variables, the premises used and the negated patterns
// that were absent. Provenance drives retraction and Explain.
//
// Concurrency:
// Queries take the read lock and may run in parallel. Every mutating
// operation takes the write lock for its whole duration. Mutations run
// inside a store transaction: on cancellation or when a stratum exceeds
// the round limit the store is rolled back to its state before the call.
//
// Determinism:
// Relations iterate in tuple order, rules in source order and strata in
// index order. Two runs over the same input produce the same store.
package engine
