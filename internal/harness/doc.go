// Package harness runs scheduling conformance scenarios.
//
// A scenario names one circuit, optionally runs Retype and Convert over it,
// schedules it through the compile pipeline and checks the result against
// structural expectations. Scheduled units can also be executed with the
// interpreter to check that the block placement computes the right values.
//
// # Scenario Format
//
//	name: diamond
//	description: "values feeding a phi are sunk into the branch arms"
//	fixture: ../../graphspec/testdata/diamond.yaml
//	retype: false
//	expect:
//	  idom: { br: entry, t: br, m: br }
//	  block_of: { x: t, y: f, phi: m }
//	  same_block: [[cond, br]]
//	  dominates: [[br, x]]
//	calls:
//	  - args: ["i32:1"]
//	    result: "i32:2"
//
// Blocks are named by their anchor: "entry" for the function entry,
// otherwise the fixture name of the state gate starting the block. The
// fixture is a graphspec file ("path" or "path#name") or a generated
// builtin such as "builtin:array_push/2".
//
// Failing units are described by outcome and code:
//
//	expect:
//	  outcome: fallback
//	  error_code: INCOMPARABLE_INPUTS
//
// # Determinism
//
// Every run uses a fixed run id derived from the scenario name and a
// logical clock starting at zero, so dumps are stable and can be compared
// with golden files through RunWithGolden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/diamond.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
