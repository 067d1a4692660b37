// Package build is the cycle orchestrator.
//
// A cycle walks Idle → Discovering → Processing → Collecting → Publishing →
// Idle. Per-file work fans out with bounded parallelism; collection passes
// start only after every per-file task of the cycle finished. Per-file
// problems become diagnostics on that file's record. Only an unreadable
// source tree or output root aborts a cycle, which is then reported as a
// BuildFailed event instead of a BuildCompleted one.
package build
