package commands

import (
	"fmt"

	"git.home.luguber.info/inful/ductgallery/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing registry file"`
}

func (i *InitCmd) Run(global *Global, root *CLI) error {
	out := global.stdout()
	_, _ = fmt.Fprintf(out, "Writing sample registry to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		_, _ = fmt.Fprintln(out, "Initialization failed")
		return classify(err)
	}
	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}
