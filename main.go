package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/urfave/cli/v2"

	"github.com/sahilchouksey/ktu-notes-scraper/app"
)

func main() {
	cliApp := &cli.App{
		Name:  "ktu-scraper",
		Usage: "collect KTU notes and question papers into the study-material stores",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "log what would be stored without writing anything",
				EnvVars: []string{"DRY_RUN"},
			},
			&cli.StringFlag{
				Name:  "sources",
				Usage: "path to the sources YAML file",
			},
		},
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "scrape every configured source once (default)",
				Action: runCommand,
			},
			{
				Name:  "serve",
				Usage: "run scheduled scrapes and the status server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "cron schedule with seconds, e.g. \"0 0 3 * * *\"",
					},
				},
				Action: serveCommand,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func options(c *cli.Context) app.Options {
	return app.Options{
		DryRun:      c.Bool("dry-run"),
		SourcesFile: c.String("sources"),
		Schedule:    c.String("schedule"),
	}
}

func runCommand(c *cli.Context) error {
	a, err := app.Setup(c.Context, options(c))
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.RunOnce(c.Context)
	if err != nil {
		return err
	}
	log.Infow("run summary", "summary", summary.String())
	return nil
}

func serveCommand(c *cli.Context) error {
	a, err := app.Setup(c.Context, options(c))
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(c.Context)
}
