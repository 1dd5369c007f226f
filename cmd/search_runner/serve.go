package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/search-runner/internal/schedule"
	"github.com/jonathan/search-runner/internal/server"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server and the recurring-search scheduler",
	Long:  "Starts the REST API, reconciles any jobs orphaned by a previous crash, and ticks the scheduler that enqueues recurring searches when they fall due.",
	RunE:  serveCmd,
}

func init() {
	rootCmd.AddCommand(serveCommand)
}

func serveCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// Repair jobs orphaned while the runner was down before accepting
	// new work.
	report, err := a.svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	if report.Changed() {
		log.Printf("startup reconcile: %d completed, %d failed",
			len(report.Completed), len(report.Failed))
	}

	srv := server.New(a.svc, server.Config{Port: a.cfg.Port})
	scheduler := schedule.NewScheduler(a.store, a.queue, a.cfg.TickInterval())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.Start(ctx) })
	group.Go(func() error {
		err := scheduler.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	return group.Wait()
}
