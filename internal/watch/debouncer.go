package watch

import (
	"context"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/corpusbuild/internal/events"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// DebouncerConfig controls change coalescing.
type DebouncerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// CheckBuildRunning reports whether a cycle is currently running. While
	// it is, the debouncer holds the pending changes and emits exactly one
	// follow-up once the cycle finishes.
	CheckBuildRunning func() bool

	// PollInterval controls how often the debouncer checks for cycle
	// completion while a follow-up is pending.
	PollInterval time.Duration
}

// Debouncer coalesces bursts of ChangeDetected events into a single
// RebuildNow carrying the union of the changed paths.
//
// It emits after QuietWindow without new changes, or after MaxDelay since
// the first change of the burst, whichever comes first. At most one
// rebuild is ever pending.
type Debouncer struct {
	bus *events.Bus
	cfg DebouncerConfig

	mu        sync.Mutex
	readyOnce sync.Once
	ready     chan struct{}

	pending         bool
	pendingAfterRun bool
	pollingAfterRun bool
	full            bool
	paths           map[string]struct{}
	requestCount    int
}

// NewDebouncer validates cfg and returns a debouncer publishing on bus.
func NewDebouncer(bus *events.Bus, cfg DebouncerConfig) (*Debouncer, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	if cfg.CheckBuildRunning == nil {
		cfg.CheckBuildRunning = func() bool { return false }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Debouncer{bus: bus, cfg: cfg, ready: make(chan struct{}), paths: make(map[string]struct{})}, nil
}

// Ready is closed once Run has subscribed to change events.
func (d *Debouncer) Ready() <-chan struct{} {
	return d.ready
}

// Run consumes ChangeDetected events until ctx is canceled.
func (d *Debouncer) Run(ctx context.Context) error {
	changes, unsubscribe := events.Subscribe[events.ChangeDetected](d.bus, 64)
	defer unsubscribe()

	d.readyOnce.Do(func() { close(d.ready) })

	quietTimer := stoppedTimer()
	maxTimer := stoppedTimer()
	pollTimer := stoppedTimer()

	var quietC, maxC, pollC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-changes:
			if !ok {
				return nil
			}
			first := d.onChange(evt)
			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C
			if first {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			if d.tryEmit(ctx, "quiet") {
				quietC, maxC = nil, nil
			}

		case <-maxC:
			if d.tryEmit(ctx, "max_delay") {
				quietC, maxC = nil, nil
			}

		case <-pollC:
			if d.tryEmitAfterRunning(ctx) {
				pollC, quietC, maxC = nil, nil, nil
				continue
			}
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}

		if d.shouldPollAfterRun() && pollC == nil {
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}
	}
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}

// onChange merges evt into the pending scope and reports whether it opened
// a new burst.
func (d *Debouncer) onChange(evt events.ChangeDetected) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	first := !d.pending
	if first {
		d.pending = true
		d.requestCount = 0
	}
	d.requestCount++
	d.full = d.full || evt.Full
	for _, p := range evt.Paths {
		d.paths[p] = struct{}{}
	}
	return first
}

func (d *Debouncer) shouldPollAfterRun() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingAfterRun && !d.pollingAfterRun
}

func (d *Debouncer) tryEmit(ctx context.Context, cause string) bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return true
	}
	if d.cfg.CheckBuildRunning() {
		d.pendingAfterRun = true
		d.mu.Unlock()
		return false
	}

	paths := make([]string, 0, len(d.paths))
	for p := range d.paths {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	evt := events.RebuildNow{
		Paths:        paths,
		Full:         d.full,
		RequestCount: d.requestCount,
		Cause:        cause,
		TriggeredAt:  time.Now(),
	}
	d.pending, d.pendingAfterRun, d.pollingAfterRun, d.full = false, false, false, false
	d.paths = make(map[string]struct{})
	d.mu.Unlock()

	_ = d.bus.Publish(ctx, evt)
	return true
}

func (d *Debouncer) tryEmitAfterRunning(ctx context.Context) bool {
	d.mu.Lock()
	if !d.pendingAfterRun {
		d.mu.Unlock()
		return true
	}
	d.pollingAfterRun = true
	d.mu.Unlock()

	if d.cfg.CheckBuildRunning() {
		return false
	}
	return d.tryEmit(ctx, "after_running")
}
