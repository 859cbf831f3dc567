// Package errors provides structured, actionable error messages for the
// vdiff command line and server.
//
// Each error has a unique code (e.g., "E200") that maps to a category, a
// short message and a longer explanation. Errors can carry a source
// location, the offending line, a suggestion and a wrapped cause.
//
// # Error Categories
//
//   - config: vdiff.json problems
//   - notation: tree notation syntax errors
//   - scenario: scenario suite files and failed expectations
//   - protocol: malformed frames and session problems
//   - snapshot: snapshot storage
//
// # Usage
//
//	err := errors.New("E200").
//	    WithLocation("suite.yaml", 12, 7).
//	    WithSuggestion("Close the child list with ')'")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E200: Tree notation syntax error
//	//
//	//   suite.yaml:12:7
//	//
//	//     11 │   - name: prepend
//	//   → 12 │     old: a b(c
//	//        │       ^
//	//
//	//   Hint: Close the child list with ')'
//
// Library packages under pkg/ return plain sentinel errors; this package is
// for the edges where errors meet a person.
package errors
