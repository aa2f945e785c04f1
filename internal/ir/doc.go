// Package ir provides the sea-of-nodes circuit consumed by the scheduler and
// the retype pass.
//
// A circuit is a flat arena of gates addressed by dense GateRef ids. Every
// gate carries its inputs in four consecutive ranges:
//
//	[state...][depend...][value...][root...]
//
// and the circuit maintains the reverse edges (uses) for every input slot.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Gates are never deleted; passes only relink edges or append new gates
//   - Algorithm scratch state (marks, bounds, type info) is never stored on
//     gates; each pass keeps its own side tables keyed by GateRef
//   - Root gates (CIRCUIT_ROOT, STATE_ENTRY, DEPEND_ENTRY, RETURN_LIST,
//     ARG_LIST) are created by NewCircuit and are unique per circuit
package ir
