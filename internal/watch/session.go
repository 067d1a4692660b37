// Package watch runs a long-lived build session that rebuilds the affected
// part of the corpus whenever source files change.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/corpusbuild/internal/build"
	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/discovery"
	"git.home.luguber.info/inful/corpusbuild/internal/events"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
)

// Runner executes one build cycle. *build.Builder implements it.
type Runner interface {
	Run(ctx context.Context, scope build.Scope) (*build.Result, error)
}

// Session wires the filesystem watcher, the debouncer, the optional
// periodic full rebuild and the builder together.
//
// Cycles never overlap. Changes arriving mid-cycle are merged into a single
// pending rebuild that starts once the running cycle is back to idle.
type Session struct {
	cfg    *config.Config
	runner Runner
	bus    *events.Bus
	log    *slog.Logger

	running atomic.Bool
	ready   chan struct{}
}

// NewSession creates a session. The bus is shared with the builder so
// subscribers see both control and outcome events.
func NewSession(cfg *config.Config, runner Runner, bus *events.Bus, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{cfg: cfg, runner: runner, bus: bus, log: log, ready: make(chan struct{})}
}

// Ready is closed after the initial build, once changes are being watched.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Running reports whether a cycle is in progress.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Run performs an initial full build and then rebuilds on change until ctx
// is canceled. A failed initial build does not end the session.
func (s *Session) Run(ctx context.Context) error {
	disc, err := discovery.New(s.cfg)
	if err != nil {
		return err
	}
	watcher, err := NewWatcher(disc, s.bus, s.log, s.cfg.Paths.TemplateRoot)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	debouncer, err := NewDebouncer(s.bus, DebouncerConfig{
		QuietWindow:       s.cfg.Watch.QuietWindow,
		MaxDelay:          s.cfg.Watch.MaxDelay,
		CheckBuildRunning: s.running.Load,
	})
	if err != nil {
		return err
	}

	rebuilds, unsubscribe := events.Subscribe[events.RebuildNow](s.bus, 1)
	defer unsubscribe()

	s.cycle(ctx, build.FullScope(), "initial")
	if ctx.Err() != nil {
		return nil
	}

	if every := s.cfg.Watch.FullRebuildEvery; every > 0 {
		sched, err := NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleFullRebuild(ctx, s.bus, every, s.log); err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return debouncer.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })

	g.Go(func() error {
		select {
		case <-debouncer.Ready():
			close(s.ready)
		case <-gctx.Done():
			return nil
		}
		s.log.InfoContext(gctx, "Watching for changes", slog.String("root", disc.Root()))
		for {
			select {
			case <-gctx.Done():
				return nil
			case evt, ok := <-rebuilds:
				if !ok {
					return nil
				}
				s.cycle(gctx, build.Scope{Full: evt.Full, Changed: evt.Paths}, evt.Cause)
			}
		}
	})
	return g.Wait()
}

func (s *Session) cycle(ctx context.Context, scope build.Scope, cause string) {
	s.running.Store(true)
	defer s.running.Store(false)

	s.log.DebugContext(ctx, "Starting build cycle",
		slog.String("cause", cause), logfields.Full(scope.Full), logfields.Count(len(scope.Changed)))
	if _, err := s.runner.Run(ctx, scope); err != nil && !errors.Is(err, context.Canceled) {
		s.log.WarnContext(ctx, "Build cycle failed", logfields.Error(err))
	}
}
