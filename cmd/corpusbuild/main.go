// Command corpusbuild compiles a source tree of heterogeneous files into an
// output tree and runs corpus-wide analysis passes over the result.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/corpusbuild/cmd/corpusbuild/commands"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cli commands.CLI
	g := &commands.Global{}
	parser, err := kong.New(&cli,
		kong.Name("corpusbuild"),
		kong.Description("Compile a content corpus and analyze the result."),
		kong.UsageOnError(),
		kong.Bind(g, &cli),
	)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = g.Close() }()

	err = kctx.Run()
	return ferrors.NewCLIErrorAdapter(cli.Verbose, g.Logger).Report(os.Stderr, err)
}
