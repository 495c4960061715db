package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/harrisonrobin/timebox/pkg/cli"
	"github.com/harrisonrobin/timebox/pkg/config"
	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/logger"
)

func main() {
	var root cli.CLI
	kctx := kong.Parse(&root,
		kong.Name("timebox"),
		kong.Description("Time-blocking day planner synced with Google Calendar"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
	)

	// Priority: flag > config > default
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, errs.Format(err))
		os.Exit(1)
	}
	if root.Calendar != "" {
		cfg.Calendar = root.Calendar
	}
	if root.Debug {
		cfg.Debug = true
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.Dir()}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	}

	appCtx := &cli.Context{Context: context.Background(), Config: cfg, Out: os.Stdout}
	if cli.NeedsApp(kctx.Command()) {
		if err := appCtx.Open(&root); err != nil {
			appCtx.Close()
			fmt.Fprintln(os.Stderr, errs.Format(err))
			os.Exit(1)
		}
	}

	err = kctx.Run(appCtx)
	appCtx.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, errs.Format(err))
		os.Exit(1)
	}
}
