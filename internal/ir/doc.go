// Package ir holds the value types shared by every other internal package:
// the 128-bit Number domain, batches and completion records, counterexamples,
// checkpoints and run records, plus the canonical JSON used to give
// counterexamples a stable content-addressed identity.
//
// ir imports nothing internal. All other packages import ir, so it stays the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - No float types; numbers beyond 64 bits use Number and travel as decimal strings
//   - All JSON tags use snake_case
//   - Logical save counters (seq) order checkpoints, never wall-clock timestamps
package ir
