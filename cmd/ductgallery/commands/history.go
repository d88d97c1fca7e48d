package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/config"
	ferrors "git.home.luguber.info/inful/ductgallery/internal/foundation/errors"
	"git.home.luguber.info/inful/ductgallery/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	DB    string `name:"db" help:"History database (default: history_db from the registry or DUCT_GALLERY_HISTORY_DB)"`
	Limit int    `short:"n" help:"Number of runs to list" default:"20"`
	RunID string `arg:"" optional:"" name:"run-id" help:"Show a single run with its failures"`
}

func (h *HistoryCmd) Run(ctx context.Context, global *Global, root *CLI) error {
	dbPath, err := h.resolveDB(root.Config)
	if err != nil {
		return classify(err)
	}
	store, err := history.NewSQLiteStore(dbPath)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to open run history").
			WithContext("path", dbPath).Build()
	}
	defer func() { _ = store.Close() }()

	out := tabwriter.NewWriter(global.stdout(), 0, 0, 2, ' ', 0)
	defer func() { _ = out.Flush() }()

	if h.RunID != "" {
		run, err := store.Get(ctx, h.RunID)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryNotFound, "unknown run").WithContext("run_id", h.RunID).Build()
		}
		printRun(out, run)
		return nil
	}

	runs, err := store.List(ctx, h.Limit)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to list runs").Build()
	}
	_, _ = fmt.Fprintln(out, "RUN\tSTARTED\tSTATUS\tFETCHED\tFETCH FAILED\tBUILD FAILED\tDURATION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.UTC().Format(time.DateTime), r.Status, r.Fetched, r.Total,
			r.FetchFailures, r.BuildFailures, r.Duration.Round(time.Millisecond))
	}
	return nil
}

// resolveDB applies the same precedence as generate; a missing registry is
// tolerated so history stays readable after the registry moved.
func (h *HistoryCmd) resolveDB(registryPath string) (string, error) {
	var fileSettings config.FileSettings
	file, err := config.Load(registryPath)
	switch {
	case err == nil:
		fileSettings = file.Settings
	case errors.Is(err, config.ErrRegistryNotFound):
	default:
		return "", err
	}
	settings, err := config.Resolve(fileSettings, config.Overrides{HistoryDB: h.DB})
	if err != nil {
		return "", err
	}
	if settings.HistoryDB == "" {
		return "", ferrors.ConfigError("no history database configured (use --db, history_db or " + config.EnvHistoryDB + ")").Build()
	}
	return settings.HistoryDB, nil
}

func printRun(out *tabwriter.Writer, r history.Run) {
	_, _ = fmt.Fprintf(out, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(out, "Started:\t%s\n", r.StartedAt.UTC().Format(time.DateTime))
	_, _ = fmt.Fprintf(out, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(out, "Fetched:\t%d/%d\n", r.Fetched, r.Total)
	_, _ = fmt.Fprintf(out, "Duration:\t%s\n", r.Duration.Round(time.Millisecond))
	if r.Commit != "" {
		_, _ = fmt.Fprintf(out, "Commit:\t%s\n", r.Commit)
	}
	if r.DryRun {
		_, _ = fmt.Fprintln(out, "Dry run:\tyes")
	}
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(out, "%s failure:\t%s: %s\n", f.Stage, f.Title, f.Error)
	}
}
