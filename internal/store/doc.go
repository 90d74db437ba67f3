// Package store provides SQLite-backed durable state for the verifier.
//
// The store holds:
//   - Checkpoint: a single row with the watermark and the parameters it was computed under
//   - Runs: one record per engine start
//   - Counterexamples: content-addressed reports with their full trajectory
//
// # Critical Patterns
//
// Single Writer:
//   - Only the engine's coordinator goroutine writes
//   - Readers (status, counterexamples commands) rely on WAL for non-blocking reads
//
// Logical Ordering:
//   - Saves, runs and counterexamples are ordered by seq INTEGER, NEVER timestamps
//   - All list queries include: ORDER BY seq ASC, id ASC COLLATE BINARY
//
// 128-bit Numbers:
//   - Stored as decimal TEXT and parsed back with ir.ParseNumber
//   - Trajectories are canonical JSON arrays of decimal strings
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
