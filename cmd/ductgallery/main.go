package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/ductgallery/cmd/ductgallery/commands"
	ferrors "git.home.luguber.info/inful/ductgallery/internal/foundation/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("ductgallery"),
		kong.Description("Build the con/duct examples gallery from published duct logs."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&commands.Global{}, cli),
	)
	err := parser.Run()
	stop()

	adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	os.Exit(adapter.Handle(err))
}
