package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"saldi/internal/backend"
	"saldi/internal/cli"
	"saldi/internal/services"
)

var (
	// Version is set via ldflags when building.
	Version = "dev"

	app struct {
		Version kong.VersionFlag `help:"Show version information"`
		cli.Commands
	}
)

func main() {
	ctx := kong.Parse(&app,
		kong.Vars{"version": Version},
		kong.Name("saldictl"),
		kong.Description("Inspect and repair saldi ledger balances."),
		kong.UsageOnError(),
	)

	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	ctx.FatalIfErrorf(err)
	// Operators read the command output; only warnings go to the log.
	cfg.LogLevel = "warn"
	logger := cli.SetupLogger(cfg, os.Stderr)

	bcfg, err := backend.FromAppConfig(cfg)
	ctx.FatalIfErrorf(err)
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), bcfg)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(&cli.App{
		Services: services.Wire(res.Store, res.Publisher, cfg.CacheSize, cfg.CacheTTL),
		Out:      os.Stdout,
	})
	if cerr := res.Cleanup(); cerr != nil {
		fmt.Fprintln(os.Stderr, "cleanup:", cerr)
	}
	ctx.FatalIfErrorf(err)
}
