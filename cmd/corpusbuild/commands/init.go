package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing settings file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = filepath.Join(root.Project, config.FileName)
	}
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Wrote %s\n", path)
	return nil
}
