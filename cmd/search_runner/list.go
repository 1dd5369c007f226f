package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/search-runner/internal/observability"
)

var listCommand = &cobra.Command{
	Use:   "list",
	Short: "List all searches",
	RunE:  listCmd,
}

var jobsCommand = &cobra.Command{
	Use:   "jobs <slug>",
	Short: "List a search's jobs, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  jobsCmd,
}

func init() {
	rootCmd.AddCommand(listCommand)
	rootCmd.AddCommand(jobsCommand)
}

func listCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	searches, err := a.svc.ListSearches(ctx)
	if err != nil {
		return err
	}
	if len(searches) == 0 {
		fmt.Fprintln(os.Stdout, "No searches yet; use 'create' to add one.")
		return nil
	}
	for _, search := range searches {
		schedule := search.Schedule
		if schedule == "" {
			schedule = "manual"
		}
		fmt.Fprintf(os.Stdout, "%-24s  %-10s  %s\n",
			search.Slug, schedule, observability.FormatAge(search.CreatedAt))
	}
	return nil
}

func jobsCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.svc.ListJobs(ctx, args[0])
	if err != nil {
		return err
	}
	a.printer.PrintJobList(args[0], jobs)
	return nil
}
