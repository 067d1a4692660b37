// Package events defines the in-process notifications a build session
// publishes and the bus that carries them.
package events

import (
	"time"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
)

// Outcome is implemented by the two terminal cycle events so consumers can
// subscribe to both with one channel.
type Outcome interface {
	Cycle() string
}

// BuildCompleted carries the diagnostics of a finished cycle.
//
// Records holds one record per source file currently known to the session,
// including collection-pass messages. Touched lists the source paths the
// cycle reprocessed; on a full build it equals Records.Paths().
type BuildCompleted struct {
	CycleID    string
	Full       bool
	Touched    []string
	Removed    []string
	Records    *diag.Set
	Duration   time.Duration
	FinishedAt time.Time
}

func (e BuildCompleted) Cycle() string { return e.CycleID }

// BuildFailed reports a cycle-fatal error. No BuildCompleted follows it.
type BuildFailed struct {
	CycleID  string
	Full     bool
	Err      error
	FailedAt time.Time
}

func (e BuildFailed) Cycle() string { return e.CycleID }

// ChangeDetected is emitted by the watcher for each batch of relevant
// filesystem changes, before coalescing. Full requests a full rebuild, as
// the periodic scheduler and changes outside the source tree do.
type ChangeDetected struct {
	Paths      []string
	Full       bool
	DetectedAt time.Time
}

// RebuildNow is emitted once the debouncer decides to start a cycle.
type RebuildNow struct {
	Paths        []string
	Full         bool
	RequestCount int
	// Cause is "quiet", "max_delay" or "after_running".
	Cause       string
	TriggeredAt time.Time
}
