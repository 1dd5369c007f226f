package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var artifactCommand = &cobra.Command{
	Use:   "artifact <slug> <job-id>",
	Short: "Print a job's artifact to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  artifactCmd,
}

var attachCommand = &cobra.Command{
	Use:   "attach <job-id>",
	Short: "Print the command to re-attach to a job's session",
	Args:  cobra.ExactArgs(1),
	RunE:  attachCmd,
}

var reconcileCommand = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair jobs whose session died without recording an outcome",
	RunE:  reconcileCmd,
}

func init() {
	rootCmd.AddCommand(artifactCommand)
	rootCmd.AddCommand(attachCommand)
	rootCmd.AddCommand(reconcileCommand)
}

func artifactCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	content, exists, err := a.svc.GetArtifact(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("no artifact for job %s", args[1])
	}
	fmt.Fprint(os.Stdout, content)
	return nil
}

func attachCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	command, err := a.svc.AttachCommand(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, command)
	return nil
}

func reconcileCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	a.printer.PrintReconcileReport(report)
	return nil
}
