package build

import (
	"time"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
)

// Phase is the orchestrator state.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDiscovering Phase = "discovering"
	PhaseProcessing  Phase = "processing"
	PhaseCollecting  Phase = "collecting"
	PhasePublishing  Phase = "publishing"
)

// Scope selects the files a cycle reprocesses.
type Scope struct {
	// Full reprocesses every discovered file.
	Full bool
	// Changed lists source-relative paths reported as changed. Files
	// discovered for the first time and files that disappeared are always
	// included, as are templates depending on a changed path.
	Changed []string
}

// FullScope is the scope of a full build.
func FullScope() Scope { return Scope{Full: true} }

// Status is the outcome of a cycle.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusDiagnostics Status = "diagnostics"
	StatusFailed      Status = "failed"
	StatusCanceled    Status = "canceled"
)

// Result describes a finished cycle.
type Result struct {
	CycleID string
	Status  Status
	Full    bool
	// Touched lists the source paths processed in this cycle, sorted.
	Touched []string
	// Removed lists source paths that disappeared since the previous cycle.
	Removed []string
	// Records holds one record per known source file including the messages
	// appended by collection passes.
	Records *diag.Set
	// Swept lists outputs deleted by the stale sweep.
	Swept []string
	// CollectionErrors holds corpus-pass failures that did not abort the cycle.
	CollectionErrors []error
	StartTime        time.Time
	Duration         time.Duration
}

// Problems counts the non-informational messages across all records.
func (r *Result) Problems() int {
	if r == nil || r.Records == nil {
		return 0
	}
	n := 0
	for _, rec := range r.Records.Records() {
		n += rec.Problems()
	}
	return n
}
