package commands

import (
	"context"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/config"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Output      string        `short:"o" help:"Gallery markdown file (default README.md)"`
	LogDir      string        `name:"log-dir" help:"Cache directory for downloaded logs (default logs)"`
	ImageDir    string        `name:"image-dir" help:"Directory for generated plots (default images)"`
	RepoRoot    string        `name:"repo-root" help:"Root for local info_file paths (default: git top level of the registry)"`
	Force       bool          `short:"f" help:"Re-download all logs and regenerate all plots"`
	DryRun      bool          `name:"dry-run" short:"n" help:"Report the work without touching network, plot tool or disk"`
	Tool        string        `help:"Plotting executable (default con-duct)"`
	HTTPTimeout time.Duration `name:"http-timeout" help:"Per-download timeout (default 30s)"`
	HistoryDB   string        `name:"history-db" help:"SQLite database recording run history"`
	NATSURL     string        `name:"nats-url" help:"NATS server receiving run summaries"`
	MetricsFile string        `name:"metrics-file" help:"Write Prometheus metrics in textfile format"`
	HTMLOutput  string        `name:"html-output" help:"Also render the gallery as HTML"`
}

func (g *GenerateCmd) Run(ctx context.Context, global *Global, root *CLI) error {
	return classify(runOnce(ctx, global, root.Config, g.overrides()))
}

func (g *GenerateCmd) overrides() config.Overrides {
	return config.Overrides{
		Output:      g.Output,
		LogDir:      g.LogDir,
		ImageDir:    g.ImageDir,
		RepoRoot:    g.RepoRoot,
		Tool:        g.Tool,
		HTTPTimeout: g.HTTPTimeout,
		HistoryDB:   g.HistoryDB,
		NATSURL:     g.NATSURL,
		MetricsFile: g.MetricsFile,
		HTMLOutput:  g.HTMLOutput,
		Force:       g.Force,
		DryRun:      g.DryRun,
	}
}
