package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cancelCommand = &cobra.Command{
	Use:   "cancel <slug> <job-id>",
	Short: "Cancel a running or queued job",
	Args:  cobra.ExactArgs(2),
	RunE:  cancelCmd,
}

var deleteCommand = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a search with all of its jobs and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteCmd,
}

func init() {
	rootCmd.AddCommand(cancelCommand)
	rootCmd.AddCommand(deleteCommand)
}

func cancelCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.svc.Cancel(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(outcome))
	return nil
}

func deleteCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.DeleteSearch(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Deleted %s\n", args[0])
	return nil
}
