package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"audio-notes-go/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "audio-notes",
		Usage: "turn audio recordings into transcripts, summaries and structured notes",
		Commands: []*cli.Command{
			{
				Name:   "setup",
				Usage:  "create the data directories and verify the engine configuration",
				Flags:  []cli.Flag{envFlag()},
				Action: setupAction,
			},
			{
				Name:  "serve",
				Usage: "start the HTTP API and the processing workers",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "requeue unfinished jobs found on disk",
						Value: true,
					},
				},
				Action: serveAction,
			},
			{
				Name:      "process",
				Usage:     "run one audio file through the pipeline and print the results",
				ArgsUsage: "<audio-file>",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "language",
						Usage: "transcription language hint (empty means auto-detect)",
					},
				},
				Action: processAction,
			},
			{
				Name:  "export",
				Usage: "write an xlsx report of every job in the data directory",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "output",
						Usage: "output file path",
						Value: "audio-notes-report.xlsx",
					},
				},
				Action: exportAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.New().WithError(err).Fatal("command failed")
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "environment file path",
		Value: ".env",
	}
}
