// Package scheduler places the floating gates of a circuit into basic blocks.
//
// Scheduling runs in four stages:
//
//  1. domtree.Build numbers the state gates into blocks and computes the
//     dominator tree.
//  2. domtree.NewLCA indexes the tree for ancestor and LCA queries.
//  3. Solve computes, for every floating gate reachable from a block anchor,
//     the earliest block where its inputs are available (upper bound) and the
//     latest block dominating all its uses (lower bound).
//  4. assemble commits each floating gate to its lower bound and orders
//     every block so each gate follows its inputs.
//
// A gate that cannot be placed is reported as a *VerificationError and the
// whole function is rejected. With WithVerifier enabled the input graph and
// the assembled blocks are re-checked and any inconsistency panics.
package scheduler
