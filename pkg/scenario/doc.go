// Package scenario describes reconciliation cases in a compact tree notation
// and runs them against a livetree.Document.
//
// A scenario names an old and a new child sequence and, optionally, the
// number of creates, inserts, moves, removes and updates the pass must issue.
// Suites of scenarios are stored as YAML; one suite is compiled in and
// returned by Builtin.
package scenario
