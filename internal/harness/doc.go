// Package harness replays completion-record arrival orders against the
// frontier merge, offline and deterministically.
//
// A scenario is a YAML file naming an initial watermark, a backlog capacity,
// a list of completion records in arrival order, and the expected final
// state:
//
//	name: two_workers_out_of_order
//	description: B finishes before A
//	watermark: 99
//	slots: 2
//	arrivals:
//	  - {start: 110, length: 10}
//	  - {start: 100, length: 10}
//	expect:
//	  watermark: 119
//	  backlog: 0
//	permute: true
//
// Run feeds the arrivals to engine.Frontier, records one TraceEvent per
// arrival, and checks the frontier invariants after each one. With permute,
// every other ordering of the arrivals must reach the same final state.
//
// Traces are compared against golden files in testdata/golden using canonical
// JSON, so any change to merge behavior shows up as a golden diff.
package harness
