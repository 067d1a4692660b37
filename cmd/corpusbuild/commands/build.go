package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/corpusbuild/internal/build"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Tree              bool `help:"Group reported problems by directory"`
	MaxDiagnostics    int  `name:"max-diagnostics" help:"Maximum number of messages to list (0 = all)" default:"50"`
	FailOnDiagnostics bool `name:"fail-on-diagnostics" help:"Exit non-zero when any file has problems"`
	Sweep             bool `help:"Delete outputs whose sources no longer exist (overrides build.sweep_stale)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if b.Sweep {
		cfg.Build.SweepStale = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder, err := build.NewBuilder(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = builder.Close() }()
	builder.WithLogger(g.Logger)

	res, err := builder.Run(ctx, build.FullScope())
	if err != nil {
		return err
	}
	WriteSummary(g.stdout(), res, SummaryOptions{Tree: b.Tree, Limit: b.MaxDiagnostics})
	if b.FailOnDiagnostics && res.Problems() > 0 {
		return ferrors.BuildError("build reported problems").
			WithContext("problems", res.Problems()).Build()
	}
	return nil
}
