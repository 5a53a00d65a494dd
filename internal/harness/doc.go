// Package harness runs recording scenarios against an in-process tracer.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: overflow_drops_third
//	description: "Capacity 2 keeps the first two events"
//	contexts: 1
//	capacity: 2
//	steps:
//	  - ctl: "1"
//	  - ctl: start
//	  - emit: { context: 0, id: 5 }
//	  - emit: { context: 0, id: 7 }
//	  - clock_advance: 3000
//	  - emit: { context: 0, id: 9 }
//	  - ctl: stop
//	  - ctl: start
//	    expect_error: ALREADY_ARMED
//	expect:
//	  lines:
//	    - "5,0,1000"
//	    - "7,0,2000"
//	  overflow_notices: 1
//	  counts: [2]
//
// A ctl step writes one control token. Without expect_error the token must
// succeed; with it the token must fail with exactly that code.
//
// # Deterministic Testing
//
// Every scenario gets a fresh tracer reading testutil.DeterministicClock
// with a ClockStep nanosecond step, so exported timestamps are
// reproducible and can be compared against golden files.
package harness
