package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/search-runner/internal/store"
)

var runCommand = &cobra.Command{
	Use:   "run <slug>",
	Short: "Request an immediate run of a search",
	Long:  "Creates a job for the search; it launches immediately when the execution slot is free, otherwise it waits in the queue.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCmd,
}

func init() {
	rootCmd.AddCommand(runCommand)
}

func runCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.svc.RunNow(ctx, args[0])
	if err != nil {
		return err
	}

	a.printer.PrintJob(job)
	if job.Status == store.StatusRunning {
		command, err := a.svc.AttachCommand(ctx, job.ID)
		if err == nil {
			fmt.Fprintf(os.Stdout, "Attach with: %s\n", command)
		}
	}
	return nil
}
