// Package harness runs conformance scenarios against the analyzer.
//
// A scenario pairs a declaration-graph program with what the analyzer must
// propose for it, and optionally what the rewritten source must look like.
//
// # Scenario Format
//
//	name: bearer_token_accessor
//	description: "An accessor returning a credential taints its value object"
//	program: programs/bearer.cue   # or document: | <inline CUE>
//	config:
//	  known_types: {com.example.Password: UNSAFE}
//	expect_proposals:
//	  - target: Test
//	    level: DO_NOT_LOG
//	expect_no_proposal:
//	  - Test#token()
//	expect_source:
//	  - unit: Test.java
//	    contains: ["@DoNotLog\n@Value.Immutable"]
//	exact: true
//
// Program paths and source_file references inside the program resolve
// relative to the scenario file.
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory store with a fixed run ID
// generator and testutil.DeterministicClock, so proposal snapshots are
// byte-stable and can be compared with golden files (see RunWithGolden).
//
// After the scenario's own expectations, every result is checked against
// Principles: properties that hold for any program.
package harness
