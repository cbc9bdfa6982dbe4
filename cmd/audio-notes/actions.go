package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"audio-notes-go/internal/api"
	"audio-notes-go/internal/config"
	"audio-notes-go/internal/diagnostics"
	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/pipeline"
	"audio-notes-go/internal/report"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/types"
)

func setupAction(ctx context.Context, cmd *cli.Command) error {
	_ = godotenv.Load(cmd.String("env"))
	cfg := config.Load()

	rep := diagnostics.NewChecker().Run(cfg)
	for _, item := range rep.Items {
		status := "PASS"
		if item.Status == diagnostics.StatusFail {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s: %s\n", status, item.Name, item.Message)
		if item.Hint != "" {
			fmt.Printf("       hint: %s\n", item.Hint)
		}
	}
	if rep.HasFailures {
		return errors.New("setup found problems; fix them and re-run")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Println("setup complete")
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd.String("env"))
	if err != nil {
		return err
	}

	scanned, err := a.store.ScanJobs()
	if err != nil {
		return err
	}
	restored := a.orch.Restore(scanned)
	a.log.WithField("jobs", restored).Info("registry restored from disk")

	a.orch.Start()
	if cmd.Bool("resume") {
		if resumed := a.orch.ResumeIncomplete(); resumed > 0 {
			a.log.WithField("jobs", resumed).Info("incomplete jobs requeued")
		}
	}

	srv := api.NewServer(a.orch, a.registry, a.store, a.reports, a.cfg.MaxUploadBytes, a.log)
	addr := ":" + a.cfg.Port
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", addr).Info("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := a.orch.Close(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("jobs left at their checkpoints")
	}
	return nil
}

func processAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("usage: audio-notes process <audio-file>")
	}

	a, err := newApp(cmd.String("env"))
	if err != nil {
		return err
	}
	a.orch.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.orch.Close(closeCtx)
	}()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	job, err := a.orch.CreateJob(pipeline.Submission{
		Filename: filepath.Base(path),
		Language: cmd.String("language"),
		Reader:   f,
	})
	f.Close()
	if err != nil {
		return err
	}
	a.log.WithJob(job.ID).WithField("filename", job.Filename).Info("processing")

	final, err := a.waitTerminal(ctx, job.ID)
	if err != nil {
		return err
	}
	if final.State != types.StateDone {
		if final.Error != nil {
			return fmt.Errorf("job %s: %s failed (%s): %s",
				final.ID, final.Error.Stage, final.Error.Class, final.Error.Message)
		}
		return fmt.Errorf("job %s ended %s", final.ID, final.State)
	}

	for _, stage := range types.Stages {
		if out, ok := final.Output(stage); ok {
			fmt.Printf("%-11s %s\n", stage, out.Path)
		}
	}

	var sum types.Summary
	if err := a.store.ReadArtifact(types.StageSummary, final.ID, &sum); err == nil {
		fmt.Printf("\nSummary:\n%s\n", sum.SummaryText)
	}
	var doc types.NotesDocument
	if err := a.store.ReadArtifact(types.StageNotes, final.ID, &doc); err == nil && len(doc.Items) > 0 {
		fmt.Println("\nNotes:")
		for _, item := range doc.Items {
			if item.Category != "" {
				fmt.Printf("  - [%s] %s\n", item.Category, item.Text)
			} else {
				fmt.Printf("  - %s\n", item.Text)
			}
		}
	}
	return nil
}

// exportAction reads the data directory directly; it does not need engines or
// a running pipeline.
func exportAction(ctx context.Context, cmd *cli.Command) error {
	_ = godotenv.Load(cmd.String("env"))

	log := logger.New()
	cfg := config.Load()
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return err
	}
	scanned, err := store.ScanJobs()
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := report.New(store, log).Save(output, scanned); err != nil {
		return err
	}
	log.WithField("output", output).WithField("jobs", len(scanned)).Info("workbook exported")
	fmt.Printf("exported %d jobs to %s\n", len(scanned), output)
	return nil
}
