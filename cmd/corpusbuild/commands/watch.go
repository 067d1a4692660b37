package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/corpusbuild/internal/build"
	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/events"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/metrics"
	"git.home.luguber.info/inful/corpusbuild/internal/notify"
	"git.home.luguber.info/inful/corpusbuild/internal/retry"
	"git.home.luguber.info/inful/corpusbuild/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	MetricsListen  string `name:"metrics-listen" help:"Serve Prometheus metrics on this address, e.g. :9464"`
	NATSURL        string `name:"nats-url" help:"Relay build outcomes to this NATS server (overrides notify.nats_url)"`
	Tree           bool   `help:"Group reported problems by directory"`
	MaxDiagnostics int    `name:"max-diagnostics" help:"Maximum number of messages to list per cycle (0 = all)" default:"20"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if w.NATSURL != "" {
		cfg.Notify.NATSURL = w.NATSURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := events.NewBus()
	defer bus.Close()

	builder, err := build.NewBuilder(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = builder.Close() }()
	builder.WithLogger(g.Logger).WithBus(bus)

	grp, gctx := errgroup.WithContext(ctx)

	if w.MetricsListen != "" {
		reg := prom.NewRegistry()
		builder.WithRecorder(metrics.NewPrometheusRecorder(reg))
		srv, err := listenMetrics(w.MetricsListen, reg)
		if err != nil {
			return err
		}
		g.Logger.Info("Serving metrics", slog.String("addr", srv.Addr))
		grp.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := w.startRelay(gctx, grp, cfg, bus, g.Logger); err != nil {
		return err
	}

	outcomes, unsubscribe := events.Subscribe[events.Outcome](bus, 4)
	defer unsubscribe()
	grp.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case evt, ok := <-outcomes:
				if !ok {
					return nil
				}
				w.report(g, evt)
			}
		}
	})

	session := watch.NewSession(cfg, builder, bus, g.Logger)
	grp.Go(func() error {
		defer cancel()
		return session.Run(gctx)
	})
	return grp.Wait()
}

func (w *WatchCmd) report(g *Global, evt events.Outcome) {
	switch e := evt.(type) {
	case events.BuildCompleted:
		res := &build.Result{
			CycleID:  e.CycleID,
			Full:     e.Full,
			Touched:  e.Touched,
			Removed:  e.Removed,
			Records:  e.Records,
			Duration: e.Duration,
			Status:   build.StatusSuccess,
		}
		if res.Problems() > 0 {
			res.Status = build.StatusDiagnostics
		}
		WriteSummary(g.stdout(), res, SummaryOptions{Tree: w.Tree, Limit: w.MaxDiagnostics})
	case events.BuildFailed:
		WriteSummary(g.stdout(), &build.Result{CycleID: e.CycleID, Full: e.Full, Status: build.StatusFailed}, SummaryOptions{})
		_, _ = fmt.Fprintf(g.stdout(), "  %v\n", e.Err)
	}
}

func (w *WatchCmd) startRelay(ctx context.Context, grp *errgroup.Group, cfg *config.Config, bus *events.Bus, log *slog.Logger) error {
	if cfg.Notify.NATSURL == "" {
		return nil
	}
	pub, err := notify.Connect(cfg.Notify.NATSURL)
	if err != nil {
		return err
	}
	relay := notify.NewRelay(bus, pub, cfg.Notify.Subject, log)
	if n := cfg.Notify.Retries; n != 0 {
		relay.WithRetry(retry.NewPolicy(retry.BackoffExponential, 0, 0, max(n, 0)))
	}
	grp.Go(func() error {
		defer func() { _ = pub.Close() }()
		return relay.Run(ctx)
	})
	select {
	case <-relay.Ready():
	case <-ctx.Done():
	}
	log.Info("Relaying build outcomes", slog.String("subject", cfg.Notify.Subject))
	return nil
}

func listenMetrics(addr string, reg *prom.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "metrics listener").
			WithContext("addr", addr).Fatal().Build()
	}
	srv := &http.Server{Addr: ln.Addr().String(), Handler: metrics.NewServeMux(reg), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", logfields.Error(err))
		}
	}()
	return srv, nil
}
