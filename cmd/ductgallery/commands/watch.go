package commands

import (
	"context"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/watch"
)

// WatchCmd implements the 'watch' command. It accepts every generate flag.
type WatchCmd struct {
	GenerateCmd `embed:""`

	Every           time.Duration `help:"Also regenerate on this interval (0 disables)"`
	Debounce        time.Duration `help:"Quiet period after a registry change before regenerating" default:"2s"`
	NoRegistryWatch bool          `name:"no-registry-watch" help:"Do not watch the registry file"`
}

func (w *WatchCmd) Run(ctx context.Context, global *Global, root *CLI) error {
	ov := w.overrides()
	err := watch.Run(ctx, watch.Options{
		RegistryPath:  root.Config,
		WatchRegistry: !w.NoRegistryWatch,
		Interval:      w.Every,
		Debounce:      w.Debounce,
		RunOnStart:    true,
		Logger:        global.logger(),
	}, func(ctx context.Context, _ string) error {
		return runOnce(ctx, global, root.Config, ov)
	})
	return classify(err)
}
