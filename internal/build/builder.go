package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/corpusbuild/internal/collection"
	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/discovery"
	"git.home.luguber.info/inful/corpusbuild/internal/events"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/manifest"
	"git.home.luguber.info/inful/corpusbuild/internal/metrics"
	"git.home.luguber.info/inful/corpusbuild/internal/normalize"
	"git.home.luguber.info/inful/corpusbuild/internal/observability"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// dependencyTracker is implemented by processors whose outputs depend on
// files other than their own source.
type dependencyTracker interface {
	Dependents(changed []string) []string
	Forget(rel string)
}

// Builder runs build cycles for one project. Cycles are serialized; the
// per-file records of the session survive between cycles so scoped builds
// can report diagnostics for the whole corpus.
type Builder struct {
	cfg         *config.Config
	log         *slog.Logger
	recorder    metrics.Recorder
	bus         *events.Bus
	files       *processor.Registry
	collections *processor.CollectionRegistry
	normalizers []normalize.Normalizer
	manifest    *manifest.Manifest
	ownManifest bool

	runMu sync.Mutex

	stateMu sync.RWMutex
	phase   Phase
	base    *diag.Set // per-file records only
	last    *diag.Set // base plus collection messages of the last cycle
}

// NewBuilder creates a builder with the default processors and normalizers
// for cfg. Use the With methods to replace them before the first Run.
func NewBuilder(cfg *config.Config) (*Builder, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("config required").Build()
	}
	env := processor.Env{Config: cfg, Logger: slog.Default()}
	collections, err := DefaultCollections(env)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "register collection processors").Fatal().Build()
	}
	return &Builder{
		cfg:         cfg,
		log:         slog.Default(),
		recorder:    metrics.NoopRecorder{},
		files:       DefaultProcessors(env),
		collections: collections,
		normalizers: DefaultNormalizers(env),
		phase:       PhaseIdle,
		base:        diag.NewSet(),
		last:        diag.NewSet(),
	}, nil
}

// WithLogger sets the logger used for cycle logs.
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	if log != nil {
		b.log = log
	}
	return b
}

// WithRecorder sets the metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	if r != nil {
		b.recorder = r
	}
	return b
}

// WithBus sets the bus that receives BuildCompleted and BuildFailed.
func (b *Builder) WithBus(bus *events.Bus) *Builder {
	b.bus = bus
	return b
}

// WithFileProcessors replaces the file processor registry.
func (b *Builder) WithFileProcessors(r *processor.Registry) *Builder {
	b.files = r
	return b
}

// WithCollectionProcessors replaces the collection processor registry.
func (b *Builder) WithCollectionProcessors(r *processor.CollectionRegistry) *Builder {
	b.collections = r
	return b
}

// WithNormalizers replaces the normalizer list. An empty list disables normalization.
func (b *Builder) WithNormalizers(ns ...normalize.Normalizer) *Builder {
	b.normalizers = ns
	return b
}

// WithManifest sets the output manifest used by the stale sweep. Without
// one, the builder opens the manifest in the output state directory on
// first use when sweeping is enabled.
func (b *Builder) WithManifest(m *manifest.Manifest) *Builder {
	b.manifest = m
	b.ownManifest = false
	return b
}

// Phase reports the current orchestrator state.
func (b *Builder) Phase() Phase {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.phase
}

// Records returns a copy of the records published by the last completed cycle.
func (b *Builder) Records() *diag.Set {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.last.Clone()
}

// Close releases the manifest when the builder opened it.
func (b *Builder) Close() error {
	if b.ownManifest && b.manifest != nil {
		err := b.manifest.Close()
		b.manifest = nil
		return err
	}
	return nil
}

func (b *Builder) setPhase(p Phase) {
	b.stateMu.Lock()
	b.phase = p
	b.stateMu.Unlock()
}

// Run executes one build cycle: discover, process every file in scope
// concurrently, wait for all of them, run the collection passes in order and
// publish the outcome.
//
// A non-nil error means the cycle failed or was canceled; per-file failures
// are reported as records, never as an error.
func (b *Builder) Run(ctx context.Context, scope Scope) (*Result, error) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	defer b.setPhase(PhaseIdle)

	res := &Result{CycleID: uuid.NewString(), StartTime: time.Now()}
	ctx = observability.WithCycleID(ctx, res.CycleID)
	concurrency := max(b.cfg.Build.Concurrency, 1)
	b.recorder.SetConcurrency(concurrency)

	// Discovering.
	b.setPhase(PhaseDiscovering)
	dctx, span := observability.StartPhase(ctx, b.log, b.recorder, string(PhaseDiscovering))
	existing, err := b.discover(dctx)
	observability.EndSpan(span, err)
	if err != nil {
		return b.fail(ctx, res, scope.Full, err)
	}

	b.stateMu.RLock()
	first := b.base.Len() == 0
	known := b.base.Paths()
	b.stateMu.RUnlock()

	res.Full = scope.Full || first
	targets, removed := b.plan(scope, res.Full, existing.paths, existing.set, known)
	res.Touched, res.Removed = targets, removed
	b.log.InfoContext(ctx, "Build cycle started",
		logfields.Full(res.Full), logfields.Count(len(targets)), slog.Int("removed", len(removed)))

	// Processing.
	b.setPhase(PhaseProcessing)
	pctx, span := observability.StartPhase(ctx, b.log, b.recorder, string(PhaseProcessing))
	outcomes, err := b.processAll(pctx, targets, concurrency)
	observability.EndSpan(span, err)
	if err != nil {
		return b.fail(ctx, res, res.Full, err)
	}

	b.stateMu.Lock()
	for _, o := range outcomes {
		b.base.Put(o.record)
	}
	for _, rel := range removed {
		b.base.Delete(rel)
	}
	base := b.base.Clone()
	b.stateMu.Unlock()
	for _, rel := range removed {
		b.forget(rel)
	}

	if b.cfg.Build.SweepStale {
		res.Swept = b.sweep(ctx, res.Full, outcomes, removed)
	}

	// Collecting.
	b.setPhase(PhaseCollecting)
	cctx, span := observability.StartPhase(ctx, b.log, b.recorder, string(PhaseCollecting))
	res.CollectionErrors = b.collect(cctx, base)
	span.End()
	if err := ctx.Err(); err != nil {
		return b.fail(ctx, res, res.Full, err)
	}
	res.Records = base

	// Publishing.
	b.setPhase(PhasePublishing)
	res.Duration = time.Since(res.StartTime)
	res.Status = StatusSuccess
	outcome := metrics.BuildOutcomeSuccess
	if res.Problems() > 0 {
		res.Status = StatusDiagnostics
		outcome = metrics.BuildOutcomeDiagnostics
	}
	b.stateMu.Lock()
	b.last = base.Clone()
	b.stateMu.Unlock()

	for kind, n := range base.CountByKind() {
		b.recorder.AddDiagnostics(string(kind), n)
	}
	b.recorder.ObserveCycleDuration(res.Duration, res.Full)
	b.recorder.IncBuildOutcome(outcome)

	b.publish(ctx, events.BuildCompleted{
		CycleID:    res.CycleID,
		Full:       res.Full,
		Touched:    slices.Clone(res.Touched),
		Removed:    slices.Clone(res.Removed),
		Records:    base.Clone(),
		Duration:   res.Duration,
		FinishedAt: time.Now(),
	})
	b.log.InfoContext(ctx, "Build cycle completed",
		slog.String("status", string(res.Status)),
		logfields.Count(res.Problems()),
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	return res, nil
}

func (b *Builder) fail(ctx context.Context, res *Result, full bool, err error) (*Result, error) {
	res.Full = full
	res.Duration = time.Since(res.StartTime)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.Status = StatusCanceled
		b.recorder.IncBuildOutcome(metrics.BuildOutcomeCanceled)
		b.log.WarnContext(ctx, "Build cycle canceled")
		return res, err
	}
	res.Status = StatusFailed
	b.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
	b.log.ErrorContext(ctx, "Build cycle failed", logfields.Error(err))
	b.publish(ctx, events.BuildFailed{CycleID: res.CycleID, Full: full, Err: err, FailedAt: time.Now()})
	return res, err
}

func (b *Builder) publish(ctx context.Context, evt any) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(ctx, evt); err != nil {
		b.log.WarnContext(ctx, "Failed to publish build event", logfields.Error(err))
	}
}

type discovered struct {
	paths []string
	set   map[string]struct{}
}

func (b *Builder) discover(ctx context.Context) (discovered, error) {
	d, err := discovery.New(b.cfg)
	if err != nil {
		return discovered{}, err
	}
	paths, err := d.Discover(ctx)
	if err != nil {
		return discovered{}, err
	}
	if err := os.MkdirAll(b.cfg.Paths.OutputRoot, 0o750); err != nil {
		return discovered{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output root").
			WithContext("output", b.cfg.Paths.OutputRoot).Fatal().Build()
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return discovered{paths: paths, set: set}, nil
}

// plan returns the sorted source paths to process and the known paths that
// no longer exist.
func (b *Builder) plan(scope Scope, full bool, all []string, existing map[string]struct{}, known []string) (targets, removed []string) {
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
		if _, ok := existing[k]; !ok {
			removed = append(removed, k)
		}
	}
	if full {
		return slices.Clone(all), removed
	}

	want := make(map[string]struct{})
	changed := make([]string, 0, len(scope.Changed))
	for _, c := range scope.Changed {
		changed = append(changed, filepath.ToSlash(c))
	}
	for _, c := range changed {
		want[c] = struct{}{}
	}
	for _, t := range b.trackers() {
		for _, dep := range t.Dependents(changed) {
			want[dep] = struct{}{}
		}
	}
	for _, p := range all {
		if _, ok := knownSet[p]; !ok {
			want[p] = struct{}{}
		}
	}
	for p := range want {
		if _, ok := existing[p]; ok {
			targets = append(targets, p)
		}
	}
	slices.Sort(targets)
	return targets, removed
}

func (b *Builder) trackers() []dependencyTracker {
	var out []dependencyTracker
	for _, p := range b.files.Processors() {
		if t, ok := p.(dependencyTracker); ok {
			out = append(out, t)
		}
	}
	return out
}

func (b *Builder) forget(rel string) {
	for _, t := range b.trackers() {
		t.Forget(rel)
	}
}

// fileOutcome is the result of processing one source file.
type fileOutcome struct {
	record    *diag.Record
	processor string
	output    string // output-root-relative, "" when no processor matched
}

func (b *Builder) processAll(ctx context.Context, targets []string, concurrency int) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rel := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = b.processOne(gctx, rel)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (b *Builder) processOne(ctx context.Context, rel string) (out fileOutcome) {
	p, ok := b.files.Match(rel)
	if !ok {
		return fileOutcome{record: diag.NewRecord(rel)}
	}
	out.processor = p.Name()
	out.output = p.OutputPath(rel)
	ctx = observability.WithProcessor(ctx, p.Name())
	req := processor.Request{InputRoot: b.cfg.Paths.SourceRoot, OutputRoot: b.cfg.Paths.OutputRoot, Path: rel}

	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorContext(ctx, "Processor panicked", logfields.Path(rel), slog.Any("panic", r))
			out.record = diag.NewRecord(rel).Add(diag.KindIOError, fmt.Sprintf("processor %s panicked: %v", p.Name(), r))
			b.recorder.IncFileResult(p.Name(), metrics.ResultError)
		}
	}()

	rec, err := p.Process(ctx, req)
	if err != nil {
		b.log.WarnContext(ctx, "Processing failed", logfields.Path(rel), logfields.Error(err))
		out.record = diag.NewRecord(rel).Add(diag.KindIOError, err.Error())
		b.recorder.IncFileResult(p.Name(), metrics.ResultError)
		return out
	}
	if rec == nil {
		rec = diag.NewRecord(rel)
	}
	rec.Path = rel

	if rec.Problems() == 0 && !processor.IsVerbatim(p) {
		b.normalizeOutput(ctx, req, rec, out.output)
	}

	result := metrics.ResultClean
	if rec.Problems() > 0 {
		result = metrics.ResultDiagnostic
	}
	b.recorder.IncFileResult(p.Name(), result)
	out.record = rec
	return out
}

func (b *Builder) normalizeOutput(ctx context.Context, req processor.Request, rec *diag.Record, outRel string) {
	if len(b.normalizers) == 0 {
		return
	}
	abs := req.OutputFile(outRel)
	if info, err := os.Stat(abs); err != nil || !info.Mode().IsRegular() {
		return
	}
	res, err := normalize.Apply(abs, outRel, b.normalizers)
	if res.Normalizer == "" {
		return
	}
	b.recorder.ObserveNormalize(res.Normalizer, res.Before, res.After, res.Applied)
	if err != nil {
		b.log.DebugContext(ctx, "Normalization skipped", logfields.Path(req.Path), logfields.Normalizer(res.Normalizer), logfields.Error(err))
		rec.Add(diag.KindNormalizeSkipped, err.Error())
	}
}

// collect runs every collection processor in registration order over records.
// Failures are logged and returned without aborting the remaining passes.
func (b *Builder) collect(ctx context.Context, records *diag.Set) []error {
	if b.collections == nil {
		return nil
	}
	req := processor.CollectionRequest{
		InputRoot:  b.cfg.Paths.SourceRoot,
		OutputRoot: b.cfg.Paths.OutputRoot,
		Records:    records,
		Outputs:    b.files,
	}
	var errs []error
	for _, cp := range b.collections.Processors() {
		if ctx.Err() != nil {
			return errs
		}
		pctx := observability.WithProcessor(ctx, cp.Name())
		if err := cp.Collect(pctx, req); err != nil {
			b.log.WarnContext(pctx, "Collection pass failed", logfields.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", cp.Name(), err))
		}
	}
	return errs
}

// sweep records this cycle's outputs in the manifest and deletes outputs
// that no current source produces. Failures only cost disk space and are
// logged.
func (b *Builder) sweep(ctx context.Context, full bool, outcomes []fileOutcome, removed []string) []string {
	m, err := b.openManifest()
	if err != nil {
		b.log.WarnContext(ctx, "Output manifest unavailable", logfields.Error(err))
		return nil
	}
	gen, err := m.NextGeneration(ctx)
	if err != nil {
		b.log.WarnContext(ctx, "Output manifest unavailable", logfields.Error(err))
		return nil
	}
	entries := make([]manifest.Entry, 0, len(outcomes))
	for _, o := range outcomes {
		if o.output != "" {
			entries = append(entries, manifest.Entry{Output: o.output, Source: o.record.Path, Generation: gen})
		}
	}
	if err := m.Record(ctx, gen, entries); err != nil {
		b.log.WarnContext(ctx, "Failed to record outputs", logfields.Error(err))
		return nil
	}

	var stale []manifest.Entry
	if full {
		stale, err = m.Stale(ctx, gen)
	} else if len(removed) > 0 {
		stale, err = m.BySource(ctx, removed)
	}
	if err != nil {
		b.log.WarnContext(ctx, "Failed to query stale outputs", logfields.Error(err))
		return nil
	}
	if len(stale) == 0 {
		return nil
	}
	swept, err := m.Sweep(ctx, b.cfg.Paths.OutputRoot, stale)
	if err != nil {
		b.log.WarnContext(ctx, "Stale output sweep incomplete", logfields.Error(err))
	}
	if len(swept) > 0 {
		b.log.InfoContext(ctx, "Removed stale outputs", logfields.Count(len(swept)))
	}
	return swept
}

func (b *Builder) openManifest() (*manifest.Manifest, error) {
	if b.manifest != nil {
		return b.manifest, nil
	}
	m, err := manifest.Open(filepath.Join(b.cfg.Paths.OutputRoot, collection.StateDir, manifest.FileName))
	if err != nil {
		return nil, err
	}
	b.manifest, b.ownManifest = m, true
	return m, nil
}
